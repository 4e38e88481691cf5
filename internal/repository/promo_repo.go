package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
)

type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *PromoRepository) WithTx(tx *gorm.DB) *PromoRepository {
	return &PromoRepository{db: tx}
}

func (r *PromoRepository) Create(promo *model.PromoCode) error {
	return r.db.Create(promo).Error
}

func (r *PromoRepository) GetByID(id int64) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.Where("id = ?", id).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// GetByCode 精确匹配兑换码
func (r *PromoRepository) GetByCode(code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *PromoRepository) List(page, pageSize int) ([]*model.PromoCode, int64, error) {
	var promos []*model.PromoCode
	var total int64

	if err := r.db.Model(&model.PromoCode{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.Order("id DESC").Offset(offset).Limit(pageSize).Find(&promos).Error
	return promos, total, err
}

func (r *PromoRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.PromoCode{}).Where("id = ?", id).Updates(fields).Error
}

// ClaimUse 条件自增使用次数，返回是否成功占用一次
func (r *PromoRepository) ClaimUse(id int64, now time.Time) (bool, error) {
	result := r.db.Model(&model.PromoCode{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("max_uses IS NULL OR times_used < max_uses").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Updates(map[string]interface{}{
			"times_used": gorm.Expr("times_used + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
