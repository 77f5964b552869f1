package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/game"
	"github.com/szdorah/Quiz0r-sub001/internal/middleware"
	"github.com/szdorah/Quiz0r-sub001/internal/powerup"
	"github.com/szdorah/Quiz0r-sub001/internal/services"
)

type WSHandler struct {
	registry *game.Registry
	hub      *broadcast.Hub
	auth     *services.AuthService
}

func NewWSHandler(registry *game.Registry, hub *broadcast.Hub, auth *services.AuthService) *WSHandler {
	return &WSHandler{registry: registry, hub: hub, auth: auth}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleGame godoc
// @Summary      Realtime game channel
// @Description  Bidirectional WebSocket for one game. role is host-control, host-display, player or player-monitor; host roles authenticate with ?token=, players identify with ?player_id=
// @Tags         websocket
// @Param        code path string true "Game code"
// @Param        role query string true "Connection role"
// @Param        player_id query string false "Player ID (player role)"
// @Router       /ws/games/{code} [get]
func (h *WSHandler) HandleGame(c *gin.Context) {
	session, err := h.registry.Lookup(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	code := game.NormalizeCode(c.Param("code"))

	role := broadcast.Role(c.Query("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid role"})
		return
	}

	playerID := c.Query("player_id")
	if role.HostRole() {
		hostID, err := h.auth.ValidateToken(middleware.BearerToken(c))
		if err != nil || hostID != session.HostID() {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "host authentication required"})
			return
		}
	} else {
		if _, err := session.Player(playerID); err != nil {
			respondError(c, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := broadcast.NewWSClient(conn)
	h.hub.Subscribe(code, role, playerID, client)
	if role == broadcast.RolePlayer {
		session.SetConnected(playerID, true)
	}

	// Initial sync so a (re)connecting client catches up immediately.
	client.Send(session.StateFor(role, playerID))

	defer func() {
		h.hub.Unsubscribe(code, client)
		client.Close()
		if role == broadcast.RolePlayer {
			session.SetConnected(playerID, false)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev game.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			client.Send(errorEvent("", err))
			continue
		}
		if err := h.dispatch(session, role, playerID, &ev, client); err != nil {
			client.Send(errorEvent(ev.Type, err))
		}
	}
}

// dispatch routes one validated client event into the session. Role
// checks happen here; the session assumes callers are entitled.
func (h *WSHandler) dispatch(session *game.Session, role broadcast.Role, playerID string, ev *game.ClientEvent, client *broadcast.WSClient) error {
	payload, err := ev.Decode()
	if err != nil {
		return err
	}

	switch ev.Type {
	case game.EventPlayerJoin:
		// Joining happens over REST; on the socket this is a resync.
		client.Send(session.StateFor(role, playerID))
		return nil

	case game.EventPlayerAnswer:
		if err := requireRole(role, broadcast.RolePlayer); err != nil {
			return err
		}
		p := payload.(*game.AnswerPayload)
		_, err := session.SubmitAnswer(playerID, p.QuestionID, p.SelectedOptionIDs, p.ElapsedMs)
		return err

	case game.EventPlayerPowerUp:
		if err := requireRole(role, broadcast.RolePlayer); err != nil {
			return err
		}
		p := payload.(*game.PowerUpPayload)
		result, err := session.UsePowerUp(playerID, p.QuestionID, powerup.Type(p.Type), p.TargetPlayerID)
		if err != nil {
			return err
		}
		client.Send(broadcast.Event{Type: game.EventPowerUpResult, Data: result})
		return nil

	case game.EventHostStart:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.HostStart()

	case game.EventHostNext:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.HostNext()

	case game.EventHostReveal:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.HostReveal()

	case game.EventHostAdmit:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.Admit(payload.(*game.AdmissionPayload).PlayerID)

	case game.EventHostRefuse:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.Refuse(payload.(*game.AdmissionPayload).PlayerID)

	case game.EventHostCancel:
		if err := requireRole(role, broadcast.RoleHostControl); err != nil {
			return err
		}
		return session.HostCancel()

	case game.EventMonitorShot, game.EventMonitorLoad:
		if err := requireRole(role, broadcast.RolePlayer); err != nil {
			return err
		}
		p := payload.(*game.MonitorPayload)
		p.PlayerID = playerID
		session.RelayMonitor(ev.Type, p)
		return nil
	}
	return nil
}

func requireRole(got, want broadcast.Role) error {
	if got != want {
		return apperr.Newf(apperr.KindPermissionDenied, "event requires the %s role", want)
	}
	return nil
}

func errorEvent(eventType string, err error) broadcast.Event {
	data := gin.H{"message": err.Error()}
	if eventType != "" {
		data["event"] = eventType
	}
	return broadcast.Event{Type: game.EventGameError, Data: data}
}
