package types

import "time"

// ReasoningStep is one persisted Reason->Act->Observe->Reflect iteration of
// the reasoning loop, kept as a reusable memory record.
type ReasoningStep struct {
	ID          string    `json:"id" gorm:"primary_key"`
	Goal        string    `json:"goal" gorm:"index"`
	Iteration   int       `json:"iteration"`
	Tool        string    `json:"tool"`
	Args        string    `json:"args" gorm:"type:text"`
	Observation string    `json:"observation" gorm:"type:text"`
	Success     bool      `json:"success"`
	Reflection  string    `json:"reflection"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}
