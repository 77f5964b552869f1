package models

import "time"

type Certificate struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	GameSessionID uint      `gorm:"not null;index" json:"game_session_id"`
	Type          string    `gorm:"size:10;not null" json:"type"`
	PlayerID      *string   `gorm:"size:36" json:"player_id,omitempty"`
	Status        string    `gorm:"size:12;not null;default:'pending'" json:"status"`
	RetryCount    int       `gorm:"not null;default:0" json:"retry_count"`
	FilePath      string    `gorm:"size:500" json:"file_path,omitempty"`
	AIMessage     string    `gorm:"type:text" json:"ai_message,omitempty"`
	ErrorMessage  string    `gorm:"size:500" json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	CertificateTypeHost   = "host"
	CertificateTypePlayer = "player"

	CertificateStatusPending    = "pending"
	CertificateStatusGenerating = "generating"
	CertificateStatusCompleted  = "completed"
	CertificateStatusFailed     = "failed"
)
