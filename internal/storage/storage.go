// Package storage holds the gorm-backed persistence for live games and
// certificates. Gameplay reads go through the in-memory session; these
// stores mirror its state and feed the certificate pipeline.
package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
)

// GameStore mirrors orchestrator state into postgres.
type GameStore struct {
	db *gorm.DB
}

func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) SaveSession(session *models.GameSession) error {
	return s.db.Save(session).Error
}

func (s *GameStore) SavePlayer(player *models.Player) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(player).Error
}

func (s *GameStore) SaveAnswer(answer *models.PlayerAnswer) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "question_id"}},
		UpdateAll: true,
	}).Create(answer).Error
}

func (s *GameStore) SavePowerUpUsage(usage *models.PowerUpUsage) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(usage).Error
}

// SessionByCode resolves a game code to its mirrored session row. Works
// after the live session has been evicted, which the certificate
// endpoints rely on.
func (s *GameStore) SessionByCode(code string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.Where("code = ?", code).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "game not found")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionsByHost lists a host's games, newest first.
func (s *GameStore) SessionsByHost(hostID uint) ([]models.GameSession, error) {
	var sessions []models.GameSession
	err := s.db.Where("host_id = ?", hostID).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

// QuizStore loads authored quizzes for game creation.
type QuizStore struct {
	db *gorm.DB
}

func NewQuizStore(db *gorm.DB) *QuizStore {
	return &QuizStore{db: db}
}

// LoadQuiz returns a quiz with its questions and options, questions in
// authored order. Only the owning host may start a game from it.
func (s *QuizStore) LoadQuiz(quizID, hostID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Preload("Questions.Options").
		First(&quiz, quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "quiz not found")
	}
	if err != nil {
		return nil, err
	}
	if quiz.HostID != hostID {
		return nil, apperr.New(apperr.KindPermissionDenied, "quiz belongs to another host")
	}
	return &quiz, nil
}

// CertificateStore persists certificate records for the pipeline.
type CertificateStore struct {
	db *gorm.DB
}

func NewCertificateStore(db *gorm.DB) *CertificateStore {
	return &CertificateStore{db: db}
}

func (s *CertificateStore) Create(cert *models.Certificate) error {
	return s.db.Create(cert).Error
}

func (s *CertificateStore) Update(cert *models.Certificate) error {
	return s.db.Save(cert).Error
}

func (s *CertificateStore) ByID(id string) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.db.First(&cert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "certificate not found")
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *CertificateStore) BySession(sessionID uint) ([]models.Certificate, error) {
	var certs []models.Certificate
	err := s.db.Where("game_session_id = ?", sessionID).Order("created_at ASC").Find(&certs).Error
	return certs, err
}
