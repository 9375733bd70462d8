package models

import "time"

// GranularityHourWeekday is the only baseline granularity currently produced
const GranularityHourWeekday = "hour_weekday"

// Baseline holds the expected value for a metric at an (hour, weekday)
// bucket, derived from historical samples. Buckets with fewer than three
// samples are never persisted.
type Baseline struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SedeID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_baselines_key,priority:1" json:"sede_id"`
	Sector        string    `gorm:"type:varchar(64);uniqueIndex:idx_baselines_key,priority:2" json:"sector,omitempty"`
	Metric        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_baselines_key,priority:3" json:"metric"`
	Granularity   string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_baselines_key,priority:4" json:"granularity"`
	TimeKey       string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_baselines_key,priority:5" json:"time_key"`
	BaselineValue float64   `json:"baseline_value"`
	StdDev        float64   `json:"std_dev"`
	SampleCount   int       `json:"sample_count"`
	CalculatedAt  time.Time `gorm:"type:timestamptz" json:"calculated_at"`
}

// TableName overrides the table name for Baseline
func (Baseline) TableName() string {
	return "baselines"
}
