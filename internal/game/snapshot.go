package game

import (
	"time"

	"github.com/szdorah/Quiz0r-sub001/internal/models"
	"github.com/szdorah/Quiz0r-sub001/internal/powerup"
)

// Snapshot is the canonical view of a session at one point in time. Every
// role projection derives from it; roles never receive independently
// computed state, so host and player views cannot drift.
type Snapshot struct {
	Code              string
	Status            string
	QuestionIndex     int
	TotalQuestions    int
	Question          *QuestionView
	QuestionStartedAt *time.Time
	Players           []PlayerSnapshot
	EligibleCount     int
	AnsweredCount     int
	Reveal            *RevealView
	Scoreboard        []ScoreboardEntry
}

type QuestionView struct {
	ID        uint         `json:"id"`
	Type      string       `json:"type"`
	Text      string       `json:"text"`
	TimeLimit int          `json:"time_limit,omitempty"`
	Points    int          `json:"points,omitempty"`
	HasHint   bool         `json:"has_hint,omitempty"`
	Options   []OptionView `json:"options,omitempty"`
}

type OptionView struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	Color     string `json:"color,omitempty"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

type PlayerSnapshot struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	AvatarColor     string         `json:"avatar_color"`
	AvatarEmoji     string         `json:"avatar_emoji"`
	TotalScore      int            `json:"total_score"`
	AdmissionStatus string         `json:"admission_status"`
	IsActive        bool           `json:"is_active"`
	Answered        bool           `json:"answered"`
	Budget          powerup.Budget `json:"-"`
}

// RevealView is computed when the question result is shown: correct
// option highlighting plus the per-option pick distribution.
type RevealView struct {
	QuestionID       uint         `json:"question_id"`
	CorrectOptionIDs []uint       `json:"correct_option_ids"`
	Distribution     map[uint]int `json:"distribution"`
}

type ScoreboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatar_color"`
	AvatarEmoji string `json:"avatar_emoji"`
	TotalScore  int    `json:"total_score"`
	IsActive    bool   `json:"is_active"`
}

// HostControlState is the privileged projection: pending admissions and
// per-player answer status included, correct answers visible at reveal.
type HostControlState struct {
	Code              string            `json:"code"`
	Status            string            `json:"status"`
	QuestionIndex     int               `json:"question_index"`
	TotalQuestions    int               `json:"total_questions"`
	Question          *QuestionView     `json:"question,omitempty"`
	QuestionStartedAt *time.Time        `json:"question_started_at,omitempty"`
	Players           []PlayerSnapshot  `json:"players"`
	EligibleCount     int               `json:"eligible_count"`
	AnsweredCount     int               `json:"answered_count"`
	Reveal            *RevealView       `json:"reveal,omitempty"`
	Scoreboard        []ScoreboardEntry `json:"scoreboard"`
}

// HostDisplayState is projector-safe: no pending admissions, no
// individual answer content before reveal.
type HostDisplayState struct {
	Code           string            `json:"code"`
	Status         string            `json:"status"`
	QuestionIndex  int               `json:"question_index"`
	TotalQuestions int               `json:"total_questions"`
	Question       *QuestionView     `json:"question,omitempty"`
	AnsweredCount  int               `json:"answered_count"`
	EligibleCount  int               `json:"eligible_count"`
	Reveal         *RevealView       `json:"reveal,omitempty"`
	Scoreboard     []ScoreboardEntry `json:"scoreboard"`
}

// PlayerState is one player's view: own score, budget and answer status
// plus anonymized aggregates.
type PlayerState struct {
	Code           string            `json:"code"`
	Status         string            `json:"status"`
	QuestionIndex  int               `json:"question_index"`
	TotalQuestions int               `json:"total_questions"`
	Question       *QuestionView     `json:"question,omitempty"`
	You            *PlayerSnapshot   `json:"you,omitempty"`
	Budget         *powerup.Budget   `json:"budget,omitempty"`
	AnsweredCount  int               `json:"answered_count"`
	EligibleCount  int               `json:"eligible_count"`
	Reveal         *RevealView       `json:"reveal,omitempty"`
	Scoreboard     []ScoreboardEntry `json:"scoreboard"`
}

func (s *Snapshot) revealed() bool {
	return s.Status == models.GameStatusScoreboard || s.Status == models.GameStatusFinished
}

// questionFor strips correctness from option views until the answer has
// been revealed.
func (s *Snapshot) questionFor(revealed bool) *QuestionView {
	if s.Question == nil {
		return nil
	}
	q := *s.Question
	if !revealed {
		opts := make([]OptionView, len(q.Options))
		for i, o := range q.Options {
			o.IsCorrect = nil
			opts[i] = o
		}
		q.Options = opts
	}
	return &q
}

func (s *Snapshot) ForHostControl() *HostControlState {
	return &HostControlState{
		Code:              s.Code,
		Status:            s.Status,
		QuestionIndex:     s.QuestionIndex,
		TotalQuestions:    s.TotalQuestions,
		Question:          s.questionFor(s.revealed()),
		QuestionStartedAt: s.QuestionStartedAt,
		Players:           s.Players,
		EligibleCount:     s.EligibleCount,
		AnsweredCount:     s.AnsweredCount,
		Reveal:            s.Reveal,
		Scoreboard:        s.Scoreboard,
	}
}

func (s *Snapshot) ForHostDisplay() *HostDisplayState {
	return &HostDisplayState{
		Code:           s.Code,
		Status:         s.Status,
		QuestionIndex:  s.QuestionIndex,
		TotalQuestions: s.TotalQuestions,
		Question:       s.questionFor(s.revealed()),
		AnsweredCount:  s.AnsweredCount,
		EligibleCount:  s.EligibleCount,
		Reveal:         s.Reveal,
		Scoreboard:     s.Scoreboard,
	}
}

func (s *Snapshot) ForPlayer(playerID string) *PlayerState {
	st := &PlayerState{
		Code:           s.Code,
		Status:         s.Status,
		QuestionIndex:  s.QuestionIndex,
		TotalQuestions: s.TotalQuestions,
		Question:       s.questionFor(s.revealed()),
		AnsweredCount:  s.AnsweredCount,
		EligibleCount:  s.EligibleCount,
		Reveal:         s.Reveal,
		Scoreboard:     s.Scoreboard,
	}
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			p := s.Players[i]
			st.You = &p
			b := p.Budget
			st.Budget = &b
			break
		}
	}
	return st
}
