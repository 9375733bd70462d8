package repository

import (
	"github.com/uptc-energia/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaselineRepository defines operations for persisted baseline buckets
type BaselineRepository interface {
	Repository
	Upsert(baseline *models.Baseline) error
	List(sedeID, metric, granularity string) ([]models.Baseline, error)
}

type baselineRepository struct {
	BaseRepository
}

// NewBaselineRepository creates a new baseline repository
func NewBaselineRepository(db *gorm.DB) BaselineRepository {
	return &baselineRepository{BaseRepository: NewBaseRepository(db)}
}

// Upsert inserts or replaces the bucket identified by
// (sede, sector, metric, granularity, time_key).
func (r *baselineRepository) Upsert(baseline *models.Baseline) error {
	err := r.GetDB().
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "sede_id"}, {Name: "sector"}, {Name: "metric"},
				{Name: "granularity"}, {Name: "time_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"baseline_value", "std_dev", "sample_count", "calculated_at",
			}),
		}).
		Create(baseline).Error

	return r.handleError(err)
}

func (r *baselineRepository) List(sedeID, metric, granularity string) ([]models.Baseline, error) {
	var baselines []models.Baseline

	query := r.GetDB().Model(&models.Baseline{})
	if sedeID != "" {
		query = query.Where("sede_id = ?", sedeID)
	}
	if metric != "" {
		query = query.Where("metric = ?", metric)
	}
	if granularity != "" {
		query = query.Where("granularity = ?", granularity)
	}

	err := query.Order("sede_id, sector, time_key").Find(&baselines).Error
	if err != nil {
		return nil, r.handleError(err)
	}

	return baselines, nil
}
