package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Inflow  Direction = "INFLOW"
	Outflow Direction = "OUTFLOW"
	Initial Direction = "IB"
)

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

const (
	ScenarioDraft  ScenarioStatus = "Draft"
	ScenarioLocked ScenarioStatus = "Locked"
)

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

const (
	MaxNameLength        = 120
	MaxDescriptionLength = 1000
)

type (
	Direction      string
	ImportStatus   string
	ScenarioStatus string
	Role           string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Company struct {
		ID        string
		Name      string
		Role      Role // caller's role, filled on membership reads
		CreatedAt time.Time
	}

	Account struct {
		ID        string
		CompanyID string
		Name      string
		Currency  string
		CreatedAt time.Time
	}

	Import struct {
		ID           string
		CompanyID    string
		AccountID    string // empty when not attached to an account
		FileName     string
		Status       ImportStatus
		TotalRows    int
		ValidRows    int
		InvalidRows  int
		ErrorMessage string
		CreatedBy    string
		CreatedAt    time.Time
		CompletedAt  *time.Time
	}

	ImportRowError struct {
		Row     int
		Field   string
		Message string
	}

	// Transaction is an immutable row derived from an import.
	Transaction struct {
		ID           string
		CompanyID    string
		ImportID     string
		Direction    Direction
		Amount       Money
		Currency     string
		DueDate      Date
		Counterparty string
		Description  string
		Category     string
		CreatedAt    time.Time
	}

	Scenario struct {
		ID             string
		CompanyID      string
		ImportID       string
		Name           string
		Description    string
		Status         ScenarioStatus
		StartDate      Date
		EndDate        Date
		BaseScenarioID string // empty when not duplicated
		CreatedBy      string
		CreatedAt      time.Time
		UpdatedAt      time.Time
		LockedAt       *time.Time
		DeletedAt      *time.Time
	}

	// Override records a per-scenario edit of one transaction. Original
	// values are captured on the first write and never change afterwards.
	Override struct {
		ID             string
		ScenarioID     string
		FlowID         string
		OriginalDate   Date
		OriginalAmount Money
		NewDate        *Date
		NewAmount      *Money
		Note           string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	AuditEvent struct {
		ID         int64
		MessageID  string // broker message id, unique per delivery source
		EventType  string
		CompanyID  string
		ScenarioID string
		ImportID   string
		Actor      string
		Payload    string
		OccurredAt time.Time
		RecordedAt time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidCurrency  = errors.New("invalid currency")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseDirection accepts INFLOW, OUTFLOW and IB in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Inflow:
		return Inflow, nil
	case Outflow:
		return Outflow, nil
	case Initial:
		return Initial, nil
	}
	return "", fmt.Errorf("%w: %q (expected INFLOW, OUTFLOW or IB)", ErrInvalidDirection, s)
}

// Signed returns the amount with the sign it contributes to a balance.
func (d Direction) Signed(m Money) Money {
	if d == Outflow {
		return Money{Cents: -m.Cents}
	}
	return m
}

// NormalizeCurrency upper-cases and validates a 3-letter currency code.
func NormalizeCurrency(s string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if !currencyPattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q (expected 3-letter code)", ErrInvalidCurrency, s)
	}
	return c, nil
}

func (s ImportStatus) Valid() bool {
	switch s {
	case ImportPending, ImportProcessing, ImportCompleted, ImportFailed:
		return true
	}
	return false
}

func (s ScenarioStatus) Valid() bool {
	return s == ScenarioDraft || s == ScenarioLocked
}

// IsDraft reports whether the scenario still accepts edits.
func (s Scenario) IsDraft() bool {
	return s.Status == ScenarioDraft
}

// RequireDraft returns a Conflict error when the scenario is locked.
func (s Scenario) RequireDraft() error {
	if !s.IsDraft() {
		return Conflict(fmt.Sprintf("scenario %q is %s and cannot be modified", s.Name, s.Status))
	}
	return nil
}

// Weeks returns the highest week index covered by the scenario range.
func (s Scenario) Weeks() int {
	return WeekIndex(s.StartDate, s.EndDate)
}

// EffectiveDate returns the overridden date, or the original one.
func (o Override) EffectiveDate() Date {
	if o.NewDate != nil {
		return *o.NewDate
	}
	return o.OriginalDate
}

// EffectiveAmount returns the overridden amount, or the original one.
func (o Override) EffectiveAmount() Money {
	if o.NewAmount != nil {
		return *o.NewAmount
	}
	return o.OriginalAmount
}

// ValidateScenarioFields checks the user-editable scenario fields.
func ValidateScenarioFields(name, description string, start, end Date) error {
	var fe FieldErrors
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		fe.Add("name", "name is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		fe.Add("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		fe.Add("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	if start.IsZero() {
		fe.Add("start_date", "start date is required")
	}
	if end.IsZero() {
		fe.Add("end_date", "end date is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end.Time) {
		fe.Add("end_date", "end date must be after start date")
	}
	return fe.Err("invalid scenario")
}

// ValidateName checks a plain entity name (company, account).
func ValidateName(field, name string) error {
	var fe FieldErrors
	name = strings.TrimSpace(name)
	if name == "" {
		fe.Add(field, field+" is required")
	} else if utf8.RuneCountInString(name) > MaxNameLength {
		fe.Add(field, fmt.Sprintf("%s must be at most %d characters", field, MaxNameLength))
	}
	return fe.Err("invalid " + field)
}
