package repository

import (
	"time"

	"github.com/uptc-energia/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertFilter narrows an alert listing
type AlertFilter struct {
	Status   models.AlertStatus
	Severity models.Severity
	SedeID   string
	Sector   string
	From     time.Time
	To       time.Time
}

// AlertRepository defines operations for alerts and their evidence
type AlertRepository interface {
	Repository
	// CreateIdempotent inserts the alert unless one with the same
	// fingerprint already exists, in which case the existing alert is
	// returned. The boolean reports whether a new row was written.
	CreateIdempotent(alert *models.Alert) (*models.Alert, bool, error)
	FindByFingerprint(fingerprint string) (*models.Alert, error)
	GetByID(id uint) (*models.Alert, error)
	List(filter AlertFilter, offset, limit int) ([]models.Alert, int64, error)
	UpdateStatus(alert *models.Alert) error
	AddEvidence(evidence *models.Evidence) error
	ListEvidence(alertID uint) ([]models.Evidence, error)
}

type alertRepository struct {
	BaseRepository
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{BaseRepository: NewBaseRepository(db)}
}

// CreateIdempotent relies on the unique fingerprint index: the insert is
// ON CONFLICT DO NOTHING, so concurrent evaluation runs racing on the same
// fingerprint cannot produce duplicates. Whoever loses the race reads the
// winner's row back.
func (r *alertRepository) CreateIdempotent(alert *models.Alert) (*models.Alert, bool, error) {
	result := r.GetDB().
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(alert)
	if result.Error != nil {
		return nil, false, r.handleError(result.Error)
	}

	if result.RowsAffected > 0 {
		return alert, true, nil
	}

	existing, err := r.FindByFingerprint(alert.Fingerprint)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *alertRepository) FindByFingerprint(fingerprint string) (*models.Alert, error) {
	var alert models.Alert
	err := r.GetDB().Where("fingerprint = ?", fingerprint).First(&alert).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &alert, nil
}

func (r *alertRepository) GetByID(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.GetDB().First(&alert, id).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &alert, nil
}

func (r *alertRepository) List(filter AlertFilter, offset, limit int) ([]models.Alert, int64, error) {
	var alerts []models.Alert
	var total int64

	query := r.GetDB().Model(&models.Alert{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.SedeID != "" {
		query = query.Where("sede_id = ?", filter.SedeID)
	}
	if filter.Sector != "" {
		query = query.Where("sector = ?", filter.Sector)
	}
	if !filter.From.IsZero() {
		query = query.Where("window_start >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("window_end <= ?", filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.handleError(err)
	}

	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, 0, r.handleError(err)
	}

	return alerts, total, nil
}

func (r *alertRepository) UpdateStatus(alert *models.Alert) error {
	result := r.GetDB().Model(alert).
		Select("status", "acknowledged_at", "acknowledged_by").
		Updates(map[string]interface{}{
			"status":          alert.Status,
			"acknowledged_at": alert.AcknowledgedAt,
			"acknowledged_by": alert.AcknowledgedBy,
		})
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *alertRepository) AddEvidence(evidence *models.Evidence) error {
	return r.handleError(r.GetDB().Create(evidence).Error)
}

// ListEvidence returns evidence records most-recent-first
func (r *alertRepository) ListEvidence(alertID uint) ([]models.Evidence, error) {
	var evidence []models.Evidence
	err := r.GetDB().
		Where("alert_id = ?", alertID).
		Order("created_at desc, id desc").
		Find(&evidence).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return evidence, nil
}
