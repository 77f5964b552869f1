package models

import "time"

// GameSession is the durable mirror of one live game. The in-memory copy
// held by the orchestrator is authoritative while the game runs; this row
// exists for recovery and audit.
type GameSession struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	QuizID               uint       `gorm:"not null" json:"quiz_id"`
	Quiz                 Quiz       `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	HostID               uint       `gorm:"not null;index" json:"host_id"`
	Code                 string     `gorm:"size:6;uniqueIndex" json:"code"`
	Status               string     `gorm:"size:20;not null;default:'waiting'" json:"status"`
	CurrentQuestionIndex int        `gorm:"not null;default:-1" json:"current_question_index"`
	AutoAdmit            bool       `gorm:"not null;default:false" json:"auto_admit"`
	QuestionStartedAt    *time.Time `json:"question_started_at,omitempty"`
	Players              []Player   `gorm:"foreignKey:GameSessionID" json:"players,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

const (
	GameStatusWaiting    = "waiting"
	GameStatusSection    = "section"
	GameStatusQuestion   = "question"
	GameStatusRevealing  = "revealing"
	GameStatusScoreboard = "scoreboard"
	GameStatusFinished   = "finished"
	GameStatusCancelled  = "cancelled"
)
