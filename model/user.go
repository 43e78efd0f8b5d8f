package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User 表示用户模型. Anonymous users have no username, email or password
// until they are upgraded; UID never changes.
type User struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UID         string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"uid"`
	Username    *string   `gorm:"type:varchar(255);unique" json:"username"`
	Email       *string   `gorm:"type:varchar(255);unique" json:"email"`
	Password    string    `gorm:"type:varchar(255)" json:"-"`
	Nickname    string    `json:"nickname"`
	Avatar      string    `json:"avatar"`
	Role        Role      `json:"role"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate 在创建用户之前进行预处理
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.UID == "" {
		u.UID = uuid.New().String()
	}
	return nil
}
