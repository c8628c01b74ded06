/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  Dates travel as "YYYY-MM-DD" strings, leave amounts as decimal strings
  ("1.5", never floats) so half days survive every client round-trip.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HireDate        string `json:"hire_date"`
	ResignationDate string `json:"resignation_date,omitempty"`
	Active          bool   `json:"active"`
	ForceSenior     bool   `json:"force_senior,omitempty"`
}

// SaveEmployeeRequest creates or updates an employee record.
type SaveEmployeeRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HireDate        string `json:"hire_date"`
	ResignationDate string `json:"resignation_date,omitempty"`
	Active          *bool  `json:"active,omitempty"`
	ForceSenior     bool   `json:"force_senior,omitempty"`
}

// =============================================================================
// EVENT TYPES
// =============================================================================

// RecordEventRequest registers one day (or half day) of leave.
type RecordEventRequest struct {
	Date string `json:"date"`
	Kind string `json:"kind"` // "full_day" or "half_day"
}

// EventDTO represents a recorded leave day.
type EventDTO struct {
	Date  string `json:"date"`
	Kind  string `json:"kind"`
	Units string `json:"units"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// LedgerRowDTO is the year-by-employee ledger row.
type LedgerRowDTO struct {
	EmployeeID   string            `json:"employee_id"`
	Year         int               `json:"year"`
	CarryIn      string            `json:"carry_in"`
	MonthlyUsage map[string]string `json:"monthly_usage"`
	YearUsage    string            `json:"year_usage"`
	YearAccrual  string            `json:"year_accrual"`
	Remaining    string            `json:"remaining"`
	Expirations  []ExpirationDTO   `json:"expirations,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// LedgerReportDTO wraps a roster-wide report with per-employee failures.
type LedgerReportDTO struct {
	Year   int            `json:"year"`
	AsOf   string         `json:"as_of"`
	Rows   []LedgerRowDTO `json:"rows"`
	Errors []string       `json:"errors,omitempty"`
}

// ExpirationDTO represents a forfeiture record.
type ExpirationDTO struct {
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	ExpiredAt  string `json:"expired_at"`
	PeriodYear int    `json:"period_year"`
}

// =============================================================================
// OVERRIDE TYPES
// =============================================================================

// UpsertOverrideRequest sets a manual monthly usage adjustment.
type UpsertOverrideRequest struct {
	Year  int    `json:"year"`
	Month int    `json:"month"` // 1..12
	Value string `json:"value"` // decimal string
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEmployeeDTO(emp leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:          string(emp.ID),
		Name:        emp.Name,
		HireDate:    emp.HireDate.String(),
		Active:      emp.Active,
		ForceSenior: emp.ForceSeniorRegime,
	}
	if emp.ResignationDate != nil {
		dto.ResignationDate = emp.ResignationDate.String()
	}
	return dto
}

func toEventDTO(ev leave.Event) EventDTO {
	return EventDTO{
		Date:  ev.Date.String(),
		Kind:  string(ev.Kind),
		Units: ev.Kind.Units().String(),
	}
}

func toExpirationDTO(rec leave.ExpirationRecord) ExpirationDTO {
	return ExpirationDTO{
		Kind:       string(rec.Kind),
		Amount:     rec.Amount.String(),
		ExpiredAt:  rec.ExpiredAt.String(),
		PeriodYear: rec.PeriodYear,
	}
}

func toLedgerRowDTO(bal leave.Balance) LedgerRowDTO {
	row := LedgerRowDTO{
		EmployeeID:   string(bal.EmployeeID),
		Year:         bal.ReportYear,
		CarryIn:      bal.CarryIn.String(),
		MonthlyUsage: make(map[string]string, 12),
		YearUsage:    bal.YearUsage.String(),
		YearAccrual:  bal.YearAccrual.String(),
		Remaining:    bal.Remaining.String(),
		Warnings:     bal.Warnings,
	}
	for i, usage := range bal.MonthlyUsage {
		row.MonthlyUsage[time.Month(i+1).String()] = usage.String()
	}
	for _, rec := range bal.Expirations {
		row.Expirations = append(row.Expirations, toExpirationDTO(rec))
	}
	return row
}
