package model

import (
	"time"
)

// Identity 本地身份提供方的账号，Tier 为账本等级的镜像
type Identity struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash *string   `gorm:"size:255" json:"-"`
	GithubID     *string   `gorm:"column:github_id;size:50;uniqueIndex" json:"-"`
	Tier         string    `gorm:"size:20;default:basic" json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Identity) TableName() string {
	return "identities"
}
