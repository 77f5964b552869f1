package models

import "time"

// PowerUpUsage is permanent: the budget is consumed at use time and the
// record survives for post-game certificate display.
type PowerUpUsage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	GameSessionID  uint      `gorm:"not null;index" json:"game_session_id"`
	PlayerID       string    `gorm:"size:36;not null;uniqueIndex:idx_powerup_unique" json:"player_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_powerup_unique" json:"question_id"`
	Type           string    `gorm:"size:10;not null;uniqueIndex:idx_powerup_unique" json:"type"`
	TargetPlayerID string    `gorm:"size:36" json:"target_player_id,omitempty"`
	UsedAt         time.Time `json:"used_at"`
}
