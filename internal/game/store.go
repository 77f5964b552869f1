package game

import "github.com/szdorah/Quiz0r-sub001/internal/models"

// Store mirrors orchestrator state to durable storage. Writes are best
// effort: the in-memory session stays authoritative and a mirror failure
// never fails the gameplay operation that caused it.
type Store interface {
	SaveSession(session *models.GameSession) error
	SavePlayer(player *models.Player) error
	SaveAnswer(answer *models.PlayerAnswer) error
	SavePowerUpUsage(usage *models.PowerUpUsage) error
}

// NopStore discards all writes. Used in tests and as a fallback when no
// database is configured.
type NopStore struct{}

func (NopStore) SaveSession(*models.GameSession) error       { return nil }
func (NopStore) SavePlayer(*models.Player) error             { return nil }
func (NopStore) SaveAnswer(*models.PlayerAnswer) error       { return nil }
func (NopStore) SavePowerUpUsage(*models.PowerUpUsage) error { return nil }
