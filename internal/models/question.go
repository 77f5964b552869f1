package models

type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	QuizID    uint           `gorm:"not null;index" json:"quiz_id"`
	Type      string         `gorm:"size:20;not null" json:"type"`
	Text      string         `gorm:"type:text;not null" json:"text"`
	Hint      string         `gorm:"type:text" json:"hint,omitempty"`
	TimeLimit int            `gorm:"not null;default:30" json:"time_limit"`
	Points    int            `gorm:"not null;default:100" json:"points"`
	OrderNum  int            `gorm:"not null" json:"order_num"`
	Options   []AnswerOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

const (
	QuestionTypeSingleSelect = "single_select"
	QuestionTypeMultiSelect  = "multi_select"
	QuestionTypeSection      = "section"
)

// CorrectOptionIDs returns the IDs of the correct options in authored order.
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}
