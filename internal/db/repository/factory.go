package repository

import "gorm.io/gorm"

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db           *gorm.DB
	readingRepo  ReadingRepository
	ruleRepo     RuleRepository
	alertRepo    AlertRepository
	baselineRepo BaselineRepository
	userRepo     UserRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

// Reading returns the reading repository
func (f *RepositoryFactory) Reading() ReadingRepository {
	if f.readingRepo == nil {
		f.readingRepo = NewReadingRepository(f.db)
	}
	return f.readingRepo
}

// Rule returns the rule repository
func (f *RepositoryFactory) Rule() RuleRepository {
	if f.ruleRepo == nil {
		f.ruleRepo = NewRuleRepository(f.db)
	}
	return f.ruleRepo
}

// Alert returns the alert repository
func (f *RepositoryFactory) Alert() AlertRepository {
	if f.alertRepo == nil {
		f.alertRepo = NewAlertRepository(f.db)
	}
	return f.alertRepo
}

// Baseline returns the baseline repository
func (f *RepositoryFactory) Baseline() BaselineRepository {
	if f.baselineRepo == nil {
		f.baselineRepo = NewBaselineRepository(f.db)
	}
	return f.baselineRepo
}

// User returns the user repository
func (f *RepositoryFactory) User() UserRepository {
	if f.userRepo == nil {
		f.userRepo = NewUserRepository(f.db)
	}
	return f.userRepo
}
