package models

import (
	"fmt"
	"time"
)

// Reading represents one sensor snapshot for a sede, as delivered by the
// Energy API or the readings Kafka topic. Metric columns are nullable since
// not every sede reports every metric.
type Reading struct {
	Time   time.Time `gorm:"type:timestamptz;primaryKey;not null" json:"timestamp"`
	SedeID string    `gorm:"type:varchar(64);primaryKey;not null" json:"sede_id"`
	Sector string    `gorm:"type:varchar(64);primaryKey;default:''" json:"sector,omitempty"`

	EnergiaTotal        *float64 `json:"energia_total,omitempty"`
	EnergiaComedor      *float64 `json:"energia_comedor,omitempty"`
	EnergiaSalones      *float64 `json:"energia_salones,omitempty"`
	EnergiaLaboratorios *float64 `json:"energia_laboratorios,omitempty"`
	EnergiaAuditorios   *float64 `json:"energia_auditorios,omitempty"`
	EnergiaOficinas     *float64 `json:"energia_oficinas,omitempty"`
	Potencia            *float64 `json:"potencia,omitempty"`
	Agua                *float64 `json:"agua,omitempty"`
	CO2                 *float64 `json:"co2,omitempty"`
	TemperaturaExterior *float64 `json:"temperatura_exterior,omitempty"`
	Ocupacion           *float64 `json:"ocupacion,omitempty"`

	// Derived temporal dimensions, computed at ingest
	Hora             int    `json:"hora"`
	DiaSemana        int    `json:"dia_semana"`
	Mes              int    `json:"mes"`
	Anio             int    `gorm:"column:anio" json:"anio"`
	PeriodoAcademico string `gorm:"type:varchar(32)" json:"periodo_academico,omitempty"`
	EsFinSemana      bool   `json:"es_fin_semana"`
	EsFestivo        bool   `json:"es_festivo"`
}

// TableName overrides the table name for Reading
func (Reading) TableName() string {
	return "readings"
}

// MetricValue resolves a rule DSL metric name against this reading.
// The second return value is false when the metric is absent.
func (r *Reading) MetricValue(metric string) (float64, bool) {
	var v *float64

	switch metric {
	case "energiaTotal":
		v = r.EnergiaTotal
	case "energiaComedor":
		v = r.EnergiaComedor
	case "energiaSalones":
		v = r.EnergiaSalones
	case "energiaLaboratorios":
		v = r.EnergiaLaboratorios
	case "energiaAuditorios":
		v = r.EnergiaAuditorios
	case "energiaOficinas":
		v = r.EnergiaOficinas
	case "potencia":
		v = r.Potencia
	case "agua":
		v = r.Agua
	case "co2":
		v = r.CO2
	case "temperaturaExterior":
		v = r.TemperaturaExterior
	case "ocupacion":
		v = r.Ocupacion
	default:
		return 0, false
	}

	if v == nil {
		return 0, false
	}
	return *v, true
}

// KnownMetrics lists the metric names the rule DSL may reference
var KnownMetrics = []string{
	"energiaTotal", "energiaComedor", "energiaSalones", "energiaLaboratorios",
	"energiaAuditorios", "energiaOficinas", "potencia", "agua", "co2",
	"temperaturaExterior", "ocupacion",
}

// ComputeTemporalDimensions fills the derived time fields from Time.
// The academic period is approximated from the calendar month; holiday
// detection needs the institutional calendar and stays false here.
func (r *Reading) ComputeTemporalDimensions() {
	t := r.Time
	r.Hora = t.Hour()
	r.DiaSemana = int(t.Weekday())
	r.Mes = int(t.Month())
	r.Anio = t.Year()
	r.EsFinSemana = t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
	r.PeriodoAcademico = academicPeriod(t)
}

func academicPeriod(t time.Time) string {
	switch {
	case t.Month() >= time.February && t.Month() <= time.June:
		return fmt.Sprintf("%d-1", t.Year())
	case t.Month() >= time.August && t.Month() <= time.December:
		return fmt.Sprintf("%d-2", t.Year())
	default:
		return "intersemestral"
	}
}
