package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByIdentityID(identityID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("identity_id = ?", identityID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 按邮箱查找，存在多行时取最早创建的一行
func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).Order("id ASC").First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByBillingCustomerID(customerID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("billing_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) List(page, pageSize int, tier string) ([]*model.User, int64, error) {
	var users []*model.User
	var total int64

	query := r.db.Model(&model.User{})
	if tier != "" {
		query = query.Where("tier = ?", tier)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id ASC").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ListAfter 按主键游标分批读取
func (r *UserRepository) ListAfter(afterID int64, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}

// ListExpiredGrants 按主键游标查找兑换授予已过期仍为 premium 的用户
func (r *UserRepository) ListExpiredGrants(now time.Time, afterID int64, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.Where("id > ? AND tier = ? AND premium_until IS NOT NULL AND premium_until < ?", afterID, model.TierPremium, now).
		Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}

// ExpireGrant 授予仍过期时才写入，返回是否更新
func (r *UserRepository) ExpireGrant(id int64, now time.Time, fields map[string]interface{}) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND tier = ? AND premium_until IS NOT NULL AND premium_until < ?", id, model.TierPremium, now).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *UserRepository) IncrementQuotaUsed(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("quota_used_today", gorm.Expr("quota_used_today + 1")).Error
}

func (r *UserRepository) ResetQuota(id int64, nextResetAt time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"quota_used_today": 0,
		"quota_reset_at":   nextResetAt,
	}).Error
}

func (r *UserRepository) ResetAllQuotas(nextResetAt time.Time) error {
	return r.db.Model(&model.User{}).Where("1 = 1").Updates(map[string]interface{}{
		"quota_used_today": 0,
		"quota_reset_at":   nextResetAt,
	}).Error
}

// SetDailyQuota 按等级批量更新每日配额
func (r *UserRepository) SetDailyQuota(tier string, quota int) error {
	return r.db.Model(&model.User{}).Where("tier = ?", tier).
		Update("daily_quota", quota).Error
}
