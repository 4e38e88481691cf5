package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/sage_server/internal/model"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(identity *model.Identity) error {
	return r.db.Create(identity).Error
}

func (r *IdentityRepository) GetByID(id string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.Where("id = ?", id).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *IdentityRepository) GetByEmail(email string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.Where("email = ?", email).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *IdentityRepository) GetByGithubID(githubID string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.Where("github_id = ?", githubID).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *IdentityRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Identity{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *IdentityRepository) UpdateFields(id string, fields map[string]interface{}) error {
	result := r.db.Model(&model.Identity{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
