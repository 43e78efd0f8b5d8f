package model

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one persisted turn half. ParentID and SourceUserMessageID are
// empty when unset.
type Message struct {
	ID                  uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID           string      `gorm:"type:varchar(64);uniqueIndex" json:"id"`
	UserId              string      `gorm:"type:varchar(64);index:idx_user_id_created_at" json:"user_id"`
	Role                MessageRole `gorm:"type:varchar(16)" json:"role"`
	Content             string      `gorm:"type:text" json:"content"`
	ParentID            string      `gorm:"type:varchar(64);index" json:"parent_id,omitempty"`
	SourceUserMessageID string      `gorm:"type:varchar(64)" json:"source_user_message_id,omitempty"`
	SuggestedActions    []string    `gorm:"type:text;serializer:json" json:"suggested_actions,omitempty"`
	Archive             bool        `gorm:"default:false" json:"archive"`
	Deleted             bool        `gorm:"default:false;index" json:"deleted"`
	Tokens              int         `json:"tokens"`
	ModelName           string      `gorm:"type:varchar(128)" json:"model_name,omitempty"`
	CreatedAt           time.Time   `json:"created_at" gorm:"index:idx_user_id_created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (m *Message) IsUser() bool {
	return m.Role == MessageRoleUser
}

func (m *Message) IsAssistant() bool {
	return m.Role == MessageRoleAssistant
}

// IsRoot reports whether m starts a top-level thread.
func (m *Message) IsRoot() bool {
	return m.IsUser() && m.ParentID == ""
}
