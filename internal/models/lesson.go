package models

// LessonStatus tracks a lesson through the generation lifecycle.
type LessonStatus string

const (
	LessonStatusPending    LessonStatus = "pending"
	LessonStatusProcessing LessonStatus = "processing"
	LessonStatusReady      LessonStatus = "ready"
	LessonStatusFailed     LessonStatus = "failed"
)

// LessonModel is one ingested source document together with its generated
// study materials. Flashcards and questions live in their own tables and
// are preloaded on read.
type LessonModel struct {
	Base
	Title           string       `json:"title"`
	Subject         string       `json:"subject"          gorm:"index"`
	SourceType      string       `json:"source_type"      gorm:"index;not null"`
	SourceURL       string       `json:"source_url,omitempty"`
	Status          LessonStatus `json:"status"           gorm:"index;default:'pending'"`
	FailReason      string       `json:"fail_reason,omitempty"`
	ContentHash     string       `json:"-"                gorm:"index;size:64"`
	RawText         string       `json:"-"                gorm:"type:longtext"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`

	Summary     string      `json:"summary"      gorm:"type:text"`
	Notes       string      `json:"notes"        gorm:"type:longtext"`
	KeyPoints   StringArray `json:"key_points"   gorm:"type:json;serializer:json"`
	GeneratedBy string      `json:"generated_by" gorm:"index"`
	Warnings    StringArray `json:"warnings"     gorm:"type:json;serializer:json"`

	Flashcards []FlashcardModel    `json:"flashcards,omitempty" gorm:"foreignKey:LessonID"`
	Questions  []QuizQuestionModel `json:"questions,omitempty"  gorm:"foreignKey:LessonID"`
}

func (LessonModel) TableName() string { return "lessons" }

// FlashcardModel is one generated study card.
type FlashcardModel struct {
	Base
	LessonID   string `json:"-"          gorm:"index;not null"`
	Front      string `json:"front"      gorm:"type:text;not null"`
	Back       string `json:"back"       gorm:"type:text;not null"`
	Difficulty string `json:"difficulty" gorm:"default:'medium'"`
	Position   int    `json:"position"   gorm:"default:0"`
}

func (FlashcardModel) TableName() string { return "flashcards" }

// QuizQuestionModel is one generated four-choice question.
type QuizQuestionModel struct {
	Base
	LessonID     string      `json:"-"             gorm:"index;not null"`
	Prompt       string      `json:"prompt"        gorm:"type:text;not null"`
	Choices      StringArray `json:"choices"       gorm:"type:json;serializer:json"`
	CorrectIndex int         `json:"correct_index" gorm:"default:0"`
	Explanation  string      `json:"explanation,omitempty" gorm:"type:text"`
	Position     int         `json:"position"      gorm:"default:0"`
}

func (QuizQuestionModel) TableName() string { return "quiz_questions" }
