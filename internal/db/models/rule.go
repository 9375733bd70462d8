package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RuleType discriminates the rule DSL variants
type RuleType string

const (
	RuleAbsoluteThreshold RuleType = "absolute_threshold"
	RuleOutOfSchedule     RuleType = "out_of_schedule"
	RuleBaselineRelative  RuleType = "baseline_relative"
	RuleBudgetWindow      RuleType = "budget_window"
)

// Severity levels shared by rules, alerts and anomalies
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is a known severity level
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RuleScope restricts a rule to a sede and/or sector. Empty fields match
// every reading.
type RuleScope struct {
	SedeID string `json:"sedeId,omitempty"`
	Sector string `json:"sector,omitempty"`
}

// Matches reports whether a reading falls inside the scope
func (s RuleScope) Matches(r *Reading) bool {
	if s.SedeID != "" && r.SedeID != s.SedeID {
		return false
	}
	if s.Sector != "" && r.Sector != s.Sector {
		return false
	}
	return true
}

// Condition holds comparison bounds. All configured bounds must hold
// (conjunctive) for a value to violate the condition.
type Condition struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// Empty reports whether no bound is configured
func (c *Condition) Empty() bool {
	return c == nil || (c.GT == nil && c.GTE == nil && c.LT == nil && c.LTE == nil)
}

// Violates reports whether value breaches every configured bound
func (c *Condition) Violates(value float64) bool {
	if c.Empty() {
		return false
	}
	if c.GT != nil && value <= *c.GT {
		return false
	}
	if c.GTE != nil && value < *c.GTE {
		return false
	}
	if c.LT != nil && value >= *c.LT {
		return false
	}
	if c.LTE != nil && value > *c.LTE {
		return false
	}
	return true
}

// Threshold returns the first configured bound, used for message templates
func (c *Condition) Threshold() float64 {
	switch {
	case c == nil:
		return 0
	case c.GT != nil:
		return *c.GT
	case c.GTE != nil:
		return *c.GTE
	case c.LT != nil:
		return *c.LT
	case c.LTE != nil:
		return *c.LTE
	}
	return 0
}

// TimeRange is an allowed schedule interval, hour granularity. From and To
// are "HH:MM" strings; the interval is half-open [from, to) by hour.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Schedule lists the allowed operating intervals
type Schedule struct {
	Allowed []TimeRange `json:"allowed"`
}

// HourAllowed reports whether hour falls inside any allowed interval
func (s *Schedule) HourAllowed(hour int) bool {
	for _, r := range s.Allowed {
		var from, to int
		if _, err := fmt.Sscanf(r.From, "%d", &from); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(r.To, "%d", &to); err != nil {
			continue
		}
		if hour >= from && hour < to {
			return true
		}
	}
	return false
}

// BaselineTolerance configures the baseline_relative variant
type BaselineTolerance struct {
	TolerancePct float64 `json:"tolerance_pct"`
}

// Budget configures the budget_window variant
type Budget struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"` // daily, weekly, monthly
}

// RuleSpec is the rule DSL: a tagged union over Type with a shared envelope.
// Exactly one variant section is required depending on Type; Validate
// enforces this so an invalid spec never reaches the evaluator.
type RuleSpec struct {
	Type            RuleType           `json:"type"`
	Scope           RuleScope          `json:"scope"`
	Metric          string             `json:"metric"`
	Severity        Severity           `json:"severity"`
	MessageTemplate string             `json:"messageTemplate"`
	Condition       *Condition         `json:"condition,omitempty"`
	Schedule        *Schedule          `json:"schedule,omitempty"`
	Baseline        *BaselineTolerance `json:"baseline,omitempty"`
	Budget          *Budget            `json:"budget,omitempty"`
}

// Validate checks the envelope and the type-specific required fields
func (s *RuleSpec) Validate() error {
	if s.Metric == "" {
		return fmt.Errorf("rule spec: metric is required")
	}
	if !ValidSeverity(s.Severity) {
		return fmt.Errorf("rule spec: invalid severity %q", s.Severity)
	}
	if s.MessageTemplate == "" {
		return fmt.Errorf("rule spec: messageTemplate is required")
	}

	switch s.Type {
	case RuleAbsoluteThreshold:
		if s.Condition.Empty() {
			return fmt.Errorf("rule spec: absolute_threshold requires a condition")
		}
	case RuleOutOfSchedule:
		if s.Schedule == nil || len(s.Schedule.Allowed) == 0 {
			return fmt.Errorf("rule spec: out_of_schedule requires schedule.allowed")
		}
		if s.Condition.Empty() {
			return fmt.Errorf("rule spec: out_of_schedule requires a condition")
		}
	case RuleBaselineRelative:
		if s.Baseline == nil || s.Baseline.TolerancePct <= 0 {
			return fmt.Errorf("rule spec: baseline_relative requires baseline.tolerance_pct > 0")
		}
	case RuleBudgetWindow:
		if s.Budget == nil || s.Budget.Amount <= 0 {
			return fmt.Errorf("rule spec: budget_window requires budget.amount > 0")
		}
		if s.Budget.Period != "daily" && s.Budget.Period != "weekly" && s.Budget.Period != "monthly" {
			return fmt.Errorf("rule spec: invalid budget.period %q", s.Budget.Period)
		}
	default:
		return fmt.Errorf("rule spec: unsupported type %q", s.Type)
	}

	return nil
}

// Value implements driver.Valuer
func (s RuleSpec) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule spec: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *RuleSpec) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for RuleSpec: %T", value)
	}

	return json.Unmarshal(data, s)
}

// Rule is an evaluation rule with its DSL body
type Rule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Spec        RuleSpec  `gorm:"type:jsonb;not null" json:"spec"`
	Enabled     bool      `gorm:"default:true;index" json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName overrides the table name for Rule
func (Rule) TableName() string {
	return "rules"
}

// NewRule constructs a validated rule. Invalid specs fail here, at the
// boundary, rather than surfacing during evaluation.
func NewRule(name, description string, spec RuleSpec, enabled bool) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &Rule{
		Name:        name,
		Description: description,
		Spec:        spec,
		Enabled:     enabled,
	}, nil
}
