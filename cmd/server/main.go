package main

import (
	"log"

	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/certificate"
	"github.com/szdorah/Quiz0r-sub001/internal/config"
	"github.com/szdorah/Quiz0r-sub001/internal/database"
	"github.com/szdorah/Quiz0r-sub001/internal/game"
	"github.com/szdorah/Quiz0r-sub001/internal/handlers"
	"github.com/szdorah/Quiz0r-sub001/internal/middleware"
	"github.com/szdorah/Quiz0r-sub001/internal/services"
	"github.com/szdorah/Quiz0r-sub001/internal/storage"

	_ "github.com/szdorah/Quiz0r-sub001/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Live Trivia API
// @version         1.0
// @description     Backend for live multiplayer trivia games with post-game certificates
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	hub := broadcast.NewHub()
	registry := game.NewRegistry()

	gameStore := storage.NewGameStore(db)
	quizStore := storage.NewQuizStore(db)
	certStore := storage.NewCertificateStore(db)

	authService := services.NewAuthService(db, cfg.JWTSecret)

	messenger := certificate.NewAIMessenger(cfg.AIAPIKey, cfg.AIAPIURL, cfg.AIModel)
	renderer := certificate.NewPNGRenderer(cfg.FontPath)
	pipeline := certificate.NewPipeline(certStore, renderer, messenger, hub, cfg.CertDir, func(code string) {
		// All certificates are terminal: the game can leave memory now.
		registry.Evict(code)
		hub.CloseGame(code)
	})

	authHandler := handlers.NewAuthHandler(authService)
	gameHandler := handlers.NewGameHandler(registry, hub, gameStore, quizStore, pipeline.EnqueueGame)
	certHandler := handlers.NewCertificateHandler(pipeline, gameStore)
	wsHandler := handlers.NewWSHandler(registry, hub, authService)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/games/:code", wsHandler.HandleGame)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		games := api.Group("/games")
		{
			games.POST("", middleware.JWTAuth(authService), gameHandler.CreateGame)
			games.GET("", middleware.JWTAuth(authService), gameHandler.ListGames)
			games.POST("/:code/join", gameHandler.Join)
			games.GET("/:code/leaderboard", middleware.JWTAuth(authService), gameHandler.Leaderboard)
			games.POST("/:code/end", middleware.JWTAuth(authService), gameHandler.End)

			games.GET("/:code/certificates/status", certHandler.Status)
			games.POST("/:code/certificates/download", certHandler.Download)
			games.POST("/:code/certificates/regenerate", middleware.JWTAuth(authService), certHandler.Regenerate)
		}
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
