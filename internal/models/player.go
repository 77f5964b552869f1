package models

import "time"

type Player struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	GameSessionID   uint      `gorm:"not null;index" json:"game_session_id"`
	Name            string    `gorm:"size:20;not null" json:"name"`
	AvatarColor     string    `gorm:"size:7" json:"avatar_color"`
	AvatarEmoji     string    `gorm:"size:16" json:"avatar_emoji"`
	TotalScore      int       `gorm:"not null;default:0" json:"total_score"`
	AdmissionStatus string    `gorm:"size:10;not null;default:'pending'" json:"admission_status"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	LanguageCode    string    `gorm:"size:8;default:'en'" json:"language_code"`
	JoinedAt        time.Time `json:"joined_at"`
}

const (
	AdmissionPending  = "pending"
	AdmissionAdmitted = "admitted"
	AdmissionRefused  = "refused"
)
