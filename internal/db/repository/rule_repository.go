package repository

import (
	"github.com/uptc-energia/backend/internal/db/models"
	"gorm.io/gorm"
)

// RuleRepository defines operations for managing evaluation rules
type RuleRepository interface {
	Repository
	Create(rule *models.Rule) error
	Update(rule *models.Rule) error
	Delete(id uint) error
	GetByID(id uint) (*models.Rule, error)
	List(offset, limit int) ([]models.Rule, int64, error)
	ListEnabled() ([]models.Rule, error)
	SetEnabled(id uint, enabled bool) error
}

type ruleRepository struct {
	BaseRepository
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *ruleRepository) Create(rule *models.Rule) error {
	return r.handleError(r.GetDB().Create(rule).Error)
}

func (r *ruleRepository) Update(rule *models.Rule) error {
	result := r.GetDB().Save(rule)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ruleRepository) Delete(id uint) error {
	result := r.GetDB().Delete(&models.Rule{}, id)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ruleRepository) GetByID(id uint) (*models.Rule, error) {
	var rule models.Rule
	if err := r.GetDB().First(&rule, id).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &rule, nil
}

func (r *ruleRepository) List(offset, limit int) ([]models.Rule, int64, error) {
	var rules []models.Rule
	var total int64

	if err := r.GetDB().Model(&models.Rule{}).Count(&total).Error; err != nil {
		return nil, 0, r.handleError(err)
	}

	err := r.GetDB().Order("id asc").Offset(offset).Limit(limit).Find(&rules).Error
	if err != nil {
		return nil, 0, r.handleError(err)
	}

	return rules, total, nil
}

// ListEnabled returns every enabled rule. Scope filtering happens in the
// evaluator since the scope lives inside the jsonb spec.
func (r *ruleRepository) ListEnabled() ([]models.Rule, error) {
	var rules []models.Rule
	err := r.GetDB().Where("enabled = ?", true).Order("id asc").Find(&rules).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return rules, nil
}

func (r *ruleRepository) SetEnabled(id uint, enabled bool) error {
	result := r.GetDB().Model(&models.Rule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
