package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	ruleID := uint(42)

	got := Fingerprint(&ruleID, "central", "comedor", start, end)
	assert.Equal(t, "42::central::comedor::2026-03-15T08:00:00.000Z::2026-03-15T09:00:00.000Z", got)
}

func TestFingerprintManualAndAllSector(t *testing.T) {
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	got := Fingerprint(nil, "central", "", start, end)
	assert.Equal(t, "manual::central::all::2026-03-15T08:00:00.000Z::2026-03-15T09:00:00.000Z", got)
}

func TestFingerprintNormalizesToUTC(t *testing.T) {
	bogota := time.FixedZone("America/Bogota", -5*3600)
	start := time.Date(2026, 3, 15, 3, 0, 0, 0, bogota)
	end := start.Add(time.Hour)
	ruleID := uint(1)

	local := Fingerprint(&ruleID, "central", "", start, end)
	utc := Fingerprint(&ruleID, "central", "", start.UTC(), end.UTC())
	assert.Equal(t, utc, local)
	assert.Contains(t, local, "2026-03-15T08:00:00.000Z")
}

func TestFingerprintMillisecondPrecision(t *testing.T) {
	start := time.Date(2026, 3, 15, 8, 0, 0, 123456789, time.UTC)
	ruleID := uint(7)

	got := Fingerprint(&ruleID, "central", "", start, start)
	assert.Contains(t, got, "2026-03-15T08:00:00.123Z")
}

func TestFingerprintDeterminism(t *testing.T) {
	start := time.Now().UTC()
	end := start.Add(2 * time.Hour)
	ruleID := uint(9)

	a := Fingerprint(&ruleID, "sogamoso", "laboratorios", start, end)
	b := Fingerprint(&ruleID, "sogamoso", "laboratorios", start, end)
	assert.Equal(t, a, b)

	otherRule := uint(10)
	assert.NotEqual(t, a, Fingerprint(&otherRule, "sogamoso", "laboratorios", start, end))
	assert.NotEqual(t, a, Fingerprint(&ruleID, "duitama", "laboratorios", start, end))
	assert.NotEqual(t, a, Fingerprint(&ruleID, "sogamoso", "oficinas", start, end))
	assert.NotEqual(t, a, Fingerprint(&ruleID, "sogamoso", "laboratorios", start, end.Add(time.Millisecond)))
}

func TestAlertStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AlertStatus
		allowed  bool
	}{
		{AlertOpen, AlertAcknowledged, true},
		{AlertOpen, AlertResolved, true},
		{AlertAcknowledged, AlertResolved, true},
		{AlertAcknowledged, AlertOpen, false},
		{AlertResolved, AlertOpen, false},
		{AlertResolved, AlertAcknowledged, false},
		{AlertOpen, AlertOpen, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
