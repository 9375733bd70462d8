package services

import (
	"fmt"

	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// RuleService manages rule CRUD. Specs pass two gates before persistence:
// the JSON-schema envelope check and the typed Validate.
type RuleService struct {
	ruleRepo  repository.RuleRepository
	validator *utils.JSONSchemaValidator
	logger    *utils.Logger
}

// NewRuleService creates a new rule service
func NewRuleService(ruleRepo repository.RuleRepository, logger *utils.Logger) (*RuleService, error) {
	validator, err := utils.NewRuleSpecValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule spec schema: %w", err)
	}

	return &RuleService{
		ruleRepo:  ruleRepo,
		validator: validator,
		logger:    logger.Named("rule_service"),
	}, nil
}

func (s *RuleService) validateSpec(spec models.RuleSpec) error {
	if err := s.validator.ValidateAgainstSchema(utils.RuleSpecSchemaName, spec); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}
	return nil
}

// Create validates and persists a new rule
func (s *RuleService) Create(name, description string, spec models.RuleSpec, enabled bool) (*models.Rule, error) {
	if err := s.validateSpec(spec); err != nil {
		return nil, err
	}

	rule, err := models.NewRule(name, description, spec, enabled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}

	if err := s.ruleRepo.Create(rule); err != nil {
		return nil, err
	}

	s.logger.Info("Rule created",
		zap.Uint("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("type", string(rule.Spec.Type)),
	)

	return rule, nil
}

// Update replaces an existing rule's fields and spec
func (s *RuleService) Update(id uint, name, description string, spec models.RuleSpec, enabled bool) (*models.Rule, error) {
	rule, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, fmt.Errorf("%w: rule name is required", utils.ErrValidation)
	}
	if err := s.validateSpec(spec); err != nil {
		return nil, err
	}

	rule.Name = name
	rule.Description = description
	rule.Spec = spec
	rule.Enabled = enabled

	if err := s.ruleRepo.Update(rule); err != nil {
		return nil, err
	}

	s.logger.Info("Rule updated", zap.Uint("rule_id", rule.ID))
	return rule, nil
}

// Get returns one rule by id
func (s *RuleService) Get(id uint) (*models.Rule, error) {
	rule, err := s.ruleRepo.GetByID(id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return rule, nil
}

// List returns a page of rules with the total count
func (s *RuleService) List(offset, limit int) ([]models.Rule, int64, error) {
	return s.ruleRepo.List(offset, limit)
}

// SetEnabled toggles a rule without touching its spec
func (s *RuleService) SetEnabled(id uint, enabled bool) (*models.Rule, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.SetEnabled(id, enabled); err != nil {
		return nil, err
	}

	s.logger.Info("Rule toggled",
		zap.Uint("rule_id", id),
		zap.Bool("enabled", enabled),
	)

	return s.Get(id)
}

// Delete removes a rule permanently
func (s *RuleService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	if err := s.ruleRepo.Delete(id); err != nil {
		return err
	}

	s.logger.Info("Rule deleted", zap.Uint("rule_id", id))
	return nil
}
