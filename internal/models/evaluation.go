package models

import (
	"time"
)

type EvaluationType string

const (
	EvaluationSimilarityAccuracy EvaluationType = "similarity_accuracy"
	EvaluationTaggingAccuracy    EvaluationType = "tagging_accuracy"
	EvaluationRootCauseAccuracy  EvaluationType = "rootcause_accuracy"
	EvaluationBenchmark          EvaluationType = "performance_benchmark"
)

// EvaluationRecord is the write-once result of one evaluation run.
type EvaluationRecord struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	EvaluationType  EvaluationType `json:"evaluationType" gorm:"not null;index"`
	Metrics         JSONB          `json:"metrics" gorm:"type:jsonb"`
	DetailedResults JSONB          `json:"detailedResults" gorm:"type:jsonb"`
	Summary         string         `json:"summary" gorm:"type:text"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (EvaluationRecord) TableName() string {
	return "evaluation_results"
}
