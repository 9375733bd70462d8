package energyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// Client provides access to the upstream Energy API, the institutional
// service exposing raw consumption rows per sede.
type Client struct {
	config     *config.EnergyAPIConfig
	httpClient *http.Client
	logger     *utils.Logger
	baseURL    string
}

// NewClient creates a new Energy API client
func NewClient(cfg *config.EnergyAPIConfig, logger *utils.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.Named("energy_api_client"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// APIError represents an error response from the Energy API
type APIError struct {
	StatusCode int
	Message    string
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("Energy API error (%d): %s", e.StatusCode, e.Message)
}

// ConsumoFilter narrows a consumption query against the upstream API.
type ConsumoFilter struct {
	SedeID string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

// apiConsumo mirrors one row of the upstream /consumos payload. The API
// speaks snake_case Spanish; the "año" key keeps its original spelling.
type apiConsumo struct {
	ID                  int64    `json:"id"`
	SedeID              string   `json:"sede_id"`
	Timestamp           string   `json:"timestamp"`
	EnergiaTotal        *float64 `json:"energia_total"`
	EnergiaComedor      *float64 `json:"energia_comedor"`
	EnergiaSalones      *float64 `json:"energia_salones"`
	EnergiaLaboratorios *float64 `json:"energia_laboratorios"`
	EnergiaAuditorios   *float64 `json:"energia_auditorios"`
	EnergiaOficinas     *float64 `json:"energia_oficinas"`
	Potencia            *float64 `json:"potencia"`
	Agua                *float64 `json:"agua"`
	CO2                 *float64 `json:"co2"`
	TemperaturaExterior *float64 `json:"temperatura_exterior"`
	Ocupacion           *float64 `json:"ocupacion"`
	Hora                *int     `json:"hora"`
	DiaSemana           *int     `json:"dia_semana"`
	Mes                 *int     `json:"mes"`
	Anio                *int     `json:"año"`
	PeriodoAcademico    *string  `json:"periodo_academico"`
	EsFinSemana         *bool    `json:"es_fin_semana"`
	EsFestivo           *bool    `json:"es_festivo"`
}

// Sede describes one campus site as reported by the upstream API.
type Sede struct {
	ID         string `json:"id"`
	Nombre     string `json:"nombre"`
	AreaM2     *float64
	Estudiante *int
}

type apiSede struct {
	ID             string   `json:"id"`
	Nombre         string   `json:"nombre"`
	SedeID         string   `json:"sede_id"`
	Sede           string   `json:"sede"`
	NombreCompleto string   `json:"nombre_completo"`
	AreaM2         *float64 `json:"area_m2"`
	Estudiantes    *int     `json:"estudiantes"`
}

// listEnvelope accepts both a bare JSON array and a {"data": [...]} wrapper,
// which the upstream API uses interchangeably across endpoints.
type listEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// HealthCheck verifies the upstream API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, "/health")
	return err
}

// GetSedes returns the list of campus sites known to the upstream API.
func (c *Client) GetSedes(ctx context.Context) ([]Sede, error) {
	body, err := c.get(ctx, "/sedes")
	if err != nil {
		return nil, err
	}

	var raw []apiSede
	if err := decodeList(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode sedes response: %w", err)
	}

	sedes := make([]Sede, 0, len(raw))
	for _, s := range raw {
		sedes = append(sedes, mapSede(s))
	}
	return sedes, nil
}

// GetConsumos fetches consumption rows matching the filter and maps them
// into readings. Rows with an unparseable timestamp are skipped with a
// warning rather than failing the whole page.
func (c *Client) GetConsumos(ctx context.Context, filter ConsumoFilter) ([]models.Reading, error) {
	params := url.Values{}
	if filter.SedeID != "" {
		params.Set("sede_id", filter.SedeID)
	}
	if filter.From != nil {
		params.Set("from", filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		params.Set("to", filter.To.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.Order != "" {
		params.Set("order", filter.Order)
	}

	path := "/consumos"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var raw []apiConsumo
	if err := decodeList(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode consumos response: %w", err)
	}

	readings := make([]models.Reading, 0, len(raw))
	for _, row := range raw {
		reading, err := c.mapConsumo(row)
		if err != nil {
			c.logger.Warn("Skipping consumo row",
				zap.Int64("id", row.ID),
				zap.String("sede_id", row.SedeID),
				zap.Error(err),
			)
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// get performs a GET request against the Energy API
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending request to Energy API", zap.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("energy API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

func (c *Client) mapConsumo(row apiConsumo) (models.Reading, error) {
	ts, err := parseTimestamp(row.Timestamp)
	if err != nil {
		return models.Reading{}, err
	}

	reading := models.Reading{
		Time:                ts,
		SedeID:              row.SedeID,
		Sector:              dominantSector(row),
		EnergiaTotal:        row.EnergiaTotal,
		EnergiaComedor:      row.EnergiaComedor,
		EnergiaSalones:      row.EnergiaSalones,
		EnergiaLaboratorios: row.EnergiaLaboratorios,
		EnergiaAuditorios:   row.EnergiaAuditorios,
		EnergiaOficinas:     row.EnergiaOficinas,
		Potencia:            row.Potencia,
		Agua:                row.Agua,
		CO2:                 row.CO2,
		TemperaturaExterior: row.TemperaturaExterior,
		Ocupacion:           row.Ocupacion,
	}

	// Trust the dimensions the API computed; derive the rest locally.
	reading.ComputeTemporalDimensions()
	if row.Hora != nil {
		reading.Hora = *row.Hora
	}
	if row.DiaSemana != nil {
		reading.DiaSemana = *row.DiaSemana
	}
	if row.Mes != nil {
		reading.Mes = *row.Mes
	}
	if row.Anio != nil {
		reading.Anio = *row.Anio
	}
	if row.PeriodoAcademico != nil {
		reading.PeriodoAcademico = *row.PeriodoAcademico
	}
	if row.EsFinSemana != nil {
		reading.EsFinSemana = *row.EsFinSemana
	}
	if row.EsFestivo != nil {
		reading.EsFestivo = *row.EsFestivo
	}

	return reading, nil
}

// dominantSector tags a reading with the sector drawing the most energy,
// mirroring how the upstream rows (which carry no sector column) are bucketed.
func dominantSector(row apiConsumo) string {
	sector := ""
	max := 0.0
	for _, candidate := range []struct {
		name  string
		value *float64
	}{
		{"comedor", row.EnergiaComedor},
		{"salones", row.EnergiaSalones},
		{"laboratorios", row.EnergiaLaboratorios},
		{"auditorios", row.EnergiaAuditorios},
		{"oficinas", row.EnergiaOficinas},
	} {
		if candidate.value != nil && *candidate.value > max {
			max = *candidate.value
			sector = candidate.name
		}
	}
	return sector
}

func mapSede(s apiSede) Sede {
	id := s.ID
	if id == "" {
		id = s.SedeID
	}
	nombre := s.Nombre
	if nombre == "" {
		nombre = s.Sede
	}
	if nombre == "" {
		nombre = s.NombreCompleto
	}
	return Sede{
		ID:         id,
		Nombre:     nombre,
		AreaM2:     s.AreaM2,
		Estudiante: s.Estudiantes,
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

func decodeList(body []byte, out interface{}) error {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(body, out)
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if envelope.Data == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
