package models

import "time"

// Quiz is authored elsewhere; the orchestrator only reads it. The three
// counts are the per-player power-up budgets for a game of this quiz.
type Quiz struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	HostID            uint       `gorm:"not null;index" json:"host_id"`
	Host              Host       `gorm:"foreignKey:HostID;constraint:OnDelete:CASCADE" json:"-"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	HintCount         int        `gorm:"not null;default:0" json:"hint_count"`
	CopyAnswerCount   int        `gorm:"not null;default:0" json:"copy_answer_count"`
	DoublePointsCount int        `gorm:"not null;default:0" json:"double_points_count"`
	Questions         []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
