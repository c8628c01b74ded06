/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave calculation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create or update employee
    GET    /api/employees/{id}               Get employee details

  Events:
    GET    /api/employees/{id}/events        Leave days in a range
    POST   /api/employees/{id}/events        Record a leave day
    DELETE /api/employees/{id}/events        Remove a leave day

  Ledger:
    GET    /api/employees/{id}/ledger?year=  Ledger row for one employee
    GET    /api/ledger?year=                 Roster-wide ledger report
    GET    /api/employees/{id}/expirations   Forfeiture history

  Overrides:
    PUT    /api/employees/{id}/overrides     Manual monthly adjustment

  Admin:
    POST   /api/employees/{id}/invalidate    Drop derived records

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (projector, expiration engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

CACHE INVALIDATION:
  Every write that can change history (employee save, event record or
  delete, override upsert) drops the employee's snapshots and, for
  employee corrections, the expiration records too. The next projection
  rebuilds from source data.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Directory leave.Directory
	Events    leave.EventStore
	Overrides leave.OverrideStore
	Projector *leave.BalanceProjector
	Log       *logrus.Logger

	// Now is injectable for tests; nil means calendar.Today.
	Now func() calendar.Date
}

// NewHandler wires a handler around a projector and its stores.
func NewHandler(projector *leave.BalanceProjector, overrides leave.OverrideStore, log *logrus.Logger) *Handler {
	return &Handler{
		Directory: projector.Directory,
		Events:    projector.Events,
		Overrides: overrides,
		Projector: projector,
		Log:       log,
	}
}

func (h *Handler) today() calendar.Date {
	if h.Now != nil {
		return h.Now()
	}
	return calendar.Today()
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Directory.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(emps))
	for _, emp := range emps {
		dtos = append(dtos, toEmployeeDTO(emp))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Directory.Employee(r.Context(), id)
	if err != nil {
		if errors.Is(err, leave.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// SaveEmployee creates or updates an employee. A changed hire date
// invalidates every derived record for the employee.
// POST /api/employees
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	hire, err := calendar.Parse(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	emp := leave.Employee{
		ID:                leave.EmployeeID(req.ID),
		Name:              req.Name,
		HireDate:          hire,
		Active:            true,
		ForceSeniorRegime: req.ForceSenior,
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}
	if req.ResignationDate != "" {
		resigned, err := calendar.Parse(req.ResignationDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid resignation_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.ResignationDate = &resigned
	}

	ctx := r.Context()

	// An anchor correction makes every derived record stale.
	invalidate := false
	if prev, err := h.Directory.Employee(ctx, emp.ID); err == nil {
		invalidate = !prev.HireDate.Equal(emp.HireDate)
	}

	if err := h.Directory.SaveEmployee(ctx, emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	if invalidate {
		if err := h.Projector.Invalidate(ctx, emp.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to invalidate derived records", err)
			return
		}
		h.Log.WithField("employee", req.ID).Info("hire date corrected, derived records dropped")
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// InvalidateEmployee drops all derived records for an employee.
// POST /api/employees/{id}/invalidate
func (h *Handler) InvalidateEmployee(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	if err := h.Projector.Invalidate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate derived records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// RecordEvent registers one leave day.
// POST /api/employees/{id}/events
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ev, err := h.parseEvent(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := r.Context()
	if _, err := h.Directory.Employee(ctx, id); err != nil {
		if errors.Is(err, leave.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to resolve employee", err)
		return
	}

	if err := h.Events.RecordEvent(ctx, ev); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record event", err)
		return
	}
	if err := h.dropSnapshots(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate snapshots", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventDTO(ev))
}

// DeleteEvent removes one leave day (a correction).
// DELETE /api/employees/{id}/events
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ev, err := h.parseEvent(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := r.Context()
	if err := h.Events.DeleteEvent(ctx, ev); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete event", err)
		return
	}
	if err := h.dropSnapshots(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate snapshots", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEvents returns the leave days in [from, to), defaulting to the
// current calendar year.
// GET /api/employees/{id}/events?from=&to=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	now := h.today()
	from := calendar.StartOfYear(now.Year())
	to := calendar.StartOfYear(now.Year() + 1)

	if v := r.URL.Query().Get("from"); v != "" {
		d, err := calendar.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := calendar.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		to = d
	}

	events, err := h.Events.Events(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) parseEvent(id leave.EmployeeID, req RecordEventRequest) (leave.Event, error) {
	d, err := calendar.Parse(req.Date)
	if err != nil {
		return leave.Event{}, fmt.Errorf("invalid date format (use YYYY-MM-DD)")
	}
	kind := leave.EventKind(req.Kind)
	switch kind {
	case leave.FullDay, leave.HalfDay:
	case "":
		kind = leave.FullDay
	default:
		return leave.Event{}, fmt.Errorf("invalid kind %q (use full_day or half_day)", req.Kind)
	}
	return leave.Event{EmployeeID: id, Date: d, Kind: kind}, nil
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetLedgerRow returns the ledger row for one employee and year.
// GET /api/employees/{id}/ledger?year=&as_of=
func (h *Handler) GetLedgerRow(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	year, asOf, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	bal, err := h.Projector.Project(r.Context(), id, year, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to project balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerRowDTO(bal))
}

// GetLedgerReport returns the roster-wide ledger for a year.
// GET /api/ledger?year=&as_of=
func (h *Handler) GetLedgerReport(w http.ResponseWriter, r *http.Request) {
	year, asOf, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rows, projErrs, err := h.Projector.ProjectAll(r.Context(), year, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to project roster", err)
		return
	}

	report := LedgerReportDTO{Year: year, AsOf: asOf.String(), Rows: make([]LedgerRowDTO, 0, len(rows))}
	for _, bal := range rows {
		report.Rows = append(report.Rows, toLedgerRowDTO(bal))
	}
	for _, pe := range projErrs {
		h.Log.WithField("employee", string(pe.EmployeeID)).WithError(pe.Err).Error("projection failed")
		report.Errors = append(report.Errors, pe.Error())
	}
	writeJSON(w, http.StatusOK, report)
}

// ListExpirations returns the forfeiture history for an employee.
// GET /api/employees/{id}/expirations
func (h *Handler) ListExpirations(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	ctx := r.Context()

	emp, err := h.Directory.Employee(ctx, id)
	if err != nil {
		if errors.Is(err, leave.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to resolve employee", err)
		return
	}

	records, err := h.Projector.Expiration.Run(ctx, emp, h.today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run expirations", err)
		return
	}

	dtos := make([]ExpirationDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toExpirationDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) reportParams(r *http.Request) (int, calendar.Date, error) {
	asOf := h.today()
	year := asOf.Year()

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 3000 {
			return 0, calendar.Date{}, fmt.Errorf("invalid year %q", v)
		}
		year = y
	}
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := calendar.Parse(v)
		if err != nil {
			return 0, calendar.Date{}, fmt.Errorf("invalid as_of date (use YYYY-MM-DD)")
		}
		asOf = d
	}
	return year, asOf, nil
}

// =============================================================================
// OVERRIDE ENDPOINTS
// =============================================================================

// UpsertOverride sets a manual monthly usage adjustment.
// PUT /api/employees/{id}/overrides
func (h *Handler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	var req UpsertOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1..12", nil)
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a decimal string", err)
		return
	}

	ctx := r.Context()
	ov := leave.MonthlyOverride{
		EmployeeID: id,
		Year:       req.Year,
		Month:      time.Month(req.Month),
		Value:      value,
	}
	if err := h.Overrides.UpsertOverride(ctx, ov); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save override", err)
		return
	}
	if err := h.dropSnapshots(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate snapshots", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// =============================================================================
// HELPERS
// =============================================================================

// dropSnapshots clears the balance cache after any usage-affecting write.
// Expiration records stay: processed boundaries are settled history.
func (h *Handler) dropSnapshots(ctx context.Context, id leave.EmployeeID) error {
	if h.Projector.Snapshots == nil {
		return nil
	}
	return h.Projector.Snapshots.DeleteSnapshots(ctx, id)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
