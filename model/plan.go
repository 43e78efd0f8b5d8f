package model

import "time"

// Plan is a billing tier; Gem is the allotment per period.
type Plan struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(128)" json:"name"`
	Gem       float64   `json:"gem"`
	Price     int       `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

const SubscriptionCreated = "created"

type Subscription struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserUID    string    `gorm:"type:varchar(64);index" json:"user_uid"`
	PlanID     string    `gorm:"type:varchar(64)" json:"plan_id"`
	ActionName string    `gorm:"type:varchar(32)" json:"action_name"`
	StartedAt  time.Time `json:"started_at"`
	EndAt      time.Time `json:"end_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// LLMModel carries the per-token gem cost of one model, split by the role
// of the message the tokens were counted on.
type LLMModel struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"type:varchar(128);uniqueIndex" json:"name"`
	DisplayName string  `gorm:"type:varchar(128)" json:"display_name"`
	Provider    string  `gorm:"type:varchar(64)" json:"provider"`
	UserCost    float64 `json:"user_cost"`
	ModelCost   float64 `json:"model_cost"`
}

func (LLMModel) TableName() string {
	return "llm_models"
}

// UsageRow is the projection of a message the ledger needs.
type UsageRow struct {
	Role      MessageRole
	Tokens    int
	ModelName string
}
