package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB maps a postgres jsonb column onto a plain Go map.
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(data, j)
}

// AIMetric is one append-only event in the metrics sink. The engine only ever
// writes these; aggregate reads happen in MetricsService summaries.
type AIMetric struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	EventType      string    `json:"eventType" gorm:"not null;index"`
	AIFeature      string    `json:"aiFeature" gorm:"index"`
	TicketID       *uint     `json:"ticketId" gorm:"index"`
	UserID         *uint     `json:"userId"`
	Metadata       JSONB     `json:"metadata" gorm:"type:jsonb"`
	UserRating     *int      `json:"userRating"` // 1-5 when present
	ResponseTimeMs *int      `json:"responseTimeMs"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
}

func (AIMetric) TableName() string {
	return "ai_metrics"
}
