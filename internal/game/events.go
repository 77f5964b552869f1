package game

import (
	"encoding/json"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
)

// Client event types accepted on the realtime channel.
const (
	EventPlayerJoin    = "player:join"
	EventPlayerAnswer  = "player:answer"
	EventPlayerPowerUp = "player:powerUp"
	EventHostStart     = "host:start"
	EventHostNext      = "host:next"
	EventHostReveal    = "host:reveal"
	EventHostAdmit     = "host:admit"
	EventHostRefuse    = "host:refuse"
	EventHostCancel    = "host:cancel"
	EventMonitorShot   = "monitor:screenshot"
	EventMonitorLoad   = "monitor:preload"
)

// Server event types.
const (
	EventGameState      = "game:state"
	EventAnswerReceived = "game:answerReceived"
	EventGameFinished   = "game:finished"
	EventGameCancelled  = "game:cancelled"
	EventPowerUpResult  = "game:powerUp"
	EventGameError      = "game:error"
	EventCertProgress   = "certificate:progress"
)

type AnswerPayload struct {
	QuestionID        uint   `json:"question_id"`
	SelectedOptionIDs []uint `json:"selected_option_ids"`
	ElapsedMs         int64  `json:"elapsed_ms"`
}

type PowerUpPayload struct {
	QuestionID     uint   `json:"question_id"`
	Type           string `json:"type"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
}

type AdmissionPayload struct {
	PlayerID string `json:"player_id"`
}

// MonitorPayload carries the low-frequency thumbnail/preload feed that is
// relayed to the host monitor view outside the state machine.
type MonitorPayload struct {
	PlayerID string  `json:"player_id"`
	Image    string  `json:"image,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

// ClientEvent is the envelope read off the wire. Data stays raw until the
// type is known, then decodes into exactly one payload struct.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode validates the envelope and returns the typed payload for the
// event, or nil for events that carry none.
func (e *ClientEvent) Decode() (any, error) {
	switch e.Type {
	case EventPlayerAnswer:
		var p AnswerPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed answer payload", err)
		}
		if p.QuestionID == 0 {
			return nil, apperr.New(apperr.KindValidation, "question_id is required")
		}
		return &p, nil
	case EventPlayerPowerUp:
		var p PowerUpPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed power-up payload", err)
		}
		if p.QuestionID == 0 || p.Type == "" {
			return nil, apperr.New(apperr.KindValidation, "question_id and type are required")
		}
		return &p, nil
	case EventHostAdmit, EventHostRefuse:
		var p AdmissionPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed admission payload", err)
		}
		if p.PlayerID == "" {
			return nil, apperr.New(apperr.KindValidation, "player_id is required")
		}
		return &p, nil
	case EventMonitorShot, EventMonitorLoad:
		var p MonitorPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed monitor payload", err)
		}
		return &p, nil
	case EventPlayerJoin, EventHostStart, EventHostNext, EventHostReveal, EventHostCancel:
		return nil, nil
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown event type %q", e.Type)
	}
}
