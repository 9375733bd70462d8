package repository

import (
	"time"

	"github.com/uptc-energia/backend/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxReadingBatch caps the number of rows a single fetch may return,
// bounding one evaluation pass.
const MaxReadingBatch = 10000

// ReadingFilter narrows a reading fetch
type ReadingFilter struct {
	SedeID string
	Sector string
	From   time.Time
	To     time.Time
	Order  string // "asc" or "desc" by time
	Limit  int
}

// ReadingRepository defines operations over ingested sensor readings
type ReadingRepository interface {
	Repository
	InsertBatch(readings []models.Reading) (int, error)
	List(filter ReadingFilter) ([]models.Reading, error)
	LatestTime(sedeID string) (time.Time, error)
}

type readingRepository struct {
	BaseRepository
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{BaseRepository: NewBaseRepository(db)}
}

// InsertBatch inserts readings, silently skipping rows that already exist
// for the (sede, time, sector) key. Returns the number of rows written.
func (r *readingRepository) InsertBatch(readings []models.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	result := r.GetDB().
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(readings, 500)
	if result.Error != nil {
		return 0, r.handleError(result.Error)
	}

	return int(result.RowsAffected), nil
}

// List fetches readings matching the filter, capped at MaxReadingBatch
func (r *readingRepository) List(filter ReadingFilter) ([]models.Reading, error) {
	var readings []models.Reading

	query := r.GetDB().Model(&models.Reading{})

	if filter.SedeID != "" {
		query = query.Where("sede_id = ?", filter.SedeID)
	}
	if filter.Sector != "" {
		query = query.Where("sector = ?", filter.Sector)
	}
	if !filter.From.IsZero() {
		query = query.Where("time >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("time <= ?", filter.To)
	}

	order := "time asc"
	if filter.Order == "desc" {
		order = "time desc"
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxReadingBatch {
		limit = MaxReadingBatch
	}

	err := query.Order(order).Limit(limit).Find(&readings).Error
	if err != nil {
		return nil, r.handleError(err)
	}

	return readings, nil
}

// LatestTime returns the timestamp of the most recent reading for a sede
func (r *readingRepository) LatestTime(sedeID string) (time.Time, error) {
	var reading models.Reading

	query := r.GetDB().Model(&models.Reading{})
	if sedeID != "" {
		query = query.Where("sede_id = ?", sedeID)
	}

	err := query.Order("time desc").Limit(1).First(&reading).Error
	if err != nil {
		return time.Time{}, r.handleError(err)
	}

	return reading.Time, nil
}
