package models

import (
	"strconv"
	"strings"
	"time"
)

// AlertStatus is the alert lifecycle state
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// CanTransition reports whether the status change is legal. Resolved is
// terminal; everything else only moves forward.
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	switch s {
	case AlertOpen:
		return to == AlertAcknowledged || to == AlertResolved
	case AlertAcknowledged:
		return to == AlertResolved
	default:
		return false
	}
}

// FingerprintSeparator joins the fingerprint components
const FingerprintSeparator = "::"

// fingerprintTime renders a timestamp the way JS Date.toISOString does:
// UTC, millisecond precision, trailing Z. The dedup key is an exact string
// match, so this format is load-bearing.
func fingerprintTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Fingerprint derives the deterministic dedup key for an alert.
// A nil ruleID marks a manually / anomaly triggered alert.
func Fingerprint(ruleID *uint, sedeID, sector string, windowStart, windowEnd time.Time) string {
	ruleRef := "manual"
	if ruleID != nil {
		ruleRef = strconv.FormatUint(uint64(*ruleID), 10)
	}

	sectorRef := sector
	if sectorRef == "" {
		sectorRef = "all"
	}

	return strings.Join([]string{
		ruleRef,
		sedeID,
		sectorRef,
		fingerprintTime(windowStart),
		fingerprintTime(windowEnd),
	}, FingerprintSeparator)
}

// Alert is a triggered signal, deduplicated by fingerprint: for a given
// fingerprint at most one alert ever exists.
type Alert struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Fingerprint    string      `gorm:"type:varchar(512);not null;uniqueIndex" json:"fingerprint"`
	RuleID         *uint       `gorm:"index" json:"rule_id,omitempty"`
	SedeID         string      `gorm:"type:varchar(64);not null;index" json:"sede_id"`
	Sector         string      `gorm:"type:varchar(64);index" json:"sector,omitempty"`
	Metric         string      `gorm:"type:varchar(64);not null" json:"metric"`
	Severity       Severity    `gorm:"type:varchar(16);not null;index" json:"severity"`
	Status         AlertStatus `gorm:"type:varchar(16);not null;default:open;index" json:"status"`
	Message        string      `gorm:"type:text;not null" json:"message"`
	WindowStart    time.Time   `gorm:"type:timestamptz;not null;index" json:"window_start"`
	WindowEnd      time.Time   `gorm:"type:timestamptz;not null" json:"window_end"`
	AcknowledgedAt *time.Time  `gorm:"type:timestamptz" json:"acknowledged_at,omitempty"`
	AcknowledgedBy string      `gorm:"type:varchar(255)" json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TableName overrides the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

// Evidence is the structured justification attached to an alert.
// Records are append-only; an alert accumulates evidence over its lifetime.
type Evidence struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	AlertID      uint     `gorm:"not null;index" json:"alert_id"`
	Values       JSONMap  `gorm:"type:jsonb;not null" json:"values"`
	Baseline     JSONMap  `gorm:"type:jsonb;not null" json:"baseline"`
	Delta        JSONMap  `gorm:"type:jsonb;not null" json:"delta"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty"`
	Forecast     JSONMap  `gorm:"type:jsonb" json:"forecast,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the table name for Evidence
func (Evidence) TableName() string {
	return "alert_evidence"
}
