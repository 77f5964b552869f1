package models

import "time"

// PlayerAnswer holds exactly one submission per (player, question);
// resubmission is an idempotent no-op, never an overwrite.
type PlayerAnswer struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	GameSessionID     uint      `gorm:"not null;index" json:"game_session_id"`
	PlayerID          string    `gorm:"size:36;not null;uniqueIndex:idx_player_question" json:"player_id"`
	QuestionID        uint      `gorm:"not null;uniqueIndex:idx_player_question" json:"question_id"`
	SelectedOptionIDs []uint    `gorm:"serializer:json;type:text" json:"selected_option_ids"`
	IsCorrect         bool      `gorm:"not null;default:false" json:"is_correct"`
	IsFullyCorrect    bool      `gorm:"not null;default:false" json:"is_fully_correct"`
	ElapsedMs         int64     `gorm:"not null;default:0" json:"elapsed_ms"`
	Points            int       `gorm:"not null;default:0" json:"points"`
	Copied            bool      `gorm:"not null;default:false" json:"copied"`
	AnsweredAt        time.Time `json:"answered_at"`
}
