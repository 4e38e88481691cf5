package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/sage_server/internal/model"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record 记录收到的事件，返回库中的事件行以及本次是否为首次写入
func (r *WebhookEventRepository) Record(eventID, eventType string, now time.Time) (*model.WebhookEvent, bool, error) {
	event := &model.WebhookEvent{
		EventID:    eventID,
		Type:       eventType,
		Status:     model.EventStatusReceived,
		ReceivedAt: now,
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return event, true, nil
	}

	existing, err := r.GetByEventID(eventID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *WebhookEventRepository) GetByEventID(eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	if err := r.db.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// Finish 记录处理结果并累加尝试次数
func (r *WebhookEventRepository) Finish(eventID, status, errMsg string, now time.Time) error {
	fields := map[string]interface{}{
		"status":   status,
		"error":    errMsg,
		"attempts": gorm.Expr("attempts + 1"),
	}
	if status != model.EventStatusFailed {
		fields["processed_at"] = now
	}
	return r.db.Model(&model.WebhookEvent{}).Where("event_id = ?", eventID).Updates(fields).Error
}

func (r *WebhookEventRepository) List(status string, page, pageSize int) ([]*model.WebhookEvent, int64, error) {
	var events []*model.WebhookEvent
	var total int64

	query := r.db.Model(&model.WebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&events).Error
	return events, total, err
}
