package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(plan *model.Plan) error {
	return r.db.Create(plan).Error
}

func (r *PlanRepository) GetByID(id int64) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetByName(name string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.Where("name = ?", name).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ResolveBillingRef 先按价格匹配，再按产品匹配
func (r *PlanRepository) ResolveBillingRef(priceID, productID string) (*model.Plan, error) {
	var plan model.Plan
	if priceID != "" {
		err := r.db.Where("billing_price_id = ?", priceID).First(&plan).Error
		if err == nil {
			return &plan, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if productID != "" {
		err := r.db.Where("billing_product_id = ?", productID).Order("id ASC").First(&plan).Error
		if err == nil {
			return &plan, nil
		}
		return nil, err
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *PlanRepository) List() ([]*model.Plan, error) {
	var plans []*model.Plan
	err := r.db.Order("id ASC").Find(&plans).Error
	return plans, err
}
