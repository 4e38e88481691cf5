package model

import (
	"time"
)

// webhook 事件处理状态
const (
	EventStatusReceived  = "received"
	EventStatusProcessed = "processed"
	EventStatusIgnored   = "ignored"
	EventStatusUnmatched = "unmatched"
	EventStatusFailed    = "failed"
)

// WebhookEvent 已接收的计费事件，EventID 唯一用于去重
type WebhookEvent struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	EventID     string     `gorm:"size:255;uniqueIndex;not null" json:"event_id"`
	Type        string     `gorm:"size:100;not null" json:"type"`
	Status      string     `gorm:"size:20;default:received;index" json:"status"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Settled 已处理完成，重复投递时跳过
func (e *WebhookEvent) Settled() bool {
	switch e.Status {
	case EventStatusProcessed, EventStatusIgnored, EventStatusUnmatched:
		return true
	default:
		return false
	}
}
