/*
trace.go - Optional structured trace callback

PURPOSE:
  The engine emits trace events at its decision points: regime selection,
  expiration firing, override rejection, snapshot hits. Tracing is never
  required for correct operation; a nil Tracer is a no-op everywhere.

SEE ALSO:
  - cmd/server: binds the tracer to logrus
*/
package leave

import (
	"github.com/sirupsen/logrus"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// TRACE EVENTS
// =============================================================================

type TraceKind string

const (
	TraceRegimeSelected   TraceKind = "regime_selected"
	TraceExpirationFired  TraceKind = "expiration_fired"
	TraceOverrideRejected TraceKind = "override_rejected"
	TraceSnapshotHit      TraceKind = "snapshot_hit"
	TraceMissingEmployee  TraceKind = "missing_employee"

	// TraceResignationForfeit fires when ForfeitOnResignation zeroes a
	// remaining balance at the resignation date.
	TraceResignationForfeit TraceKind = "resignation_forfeit"
)

type TraceEvent struct {
	Kind       TraceKind
	EmployeeID EmployeeID
	At         calendar.Date
	Fields     map[string]any
}

// Tracer receives engine decision points. Implementations must be cheap;
// they run inline with the calculation.
type Tracer func(TraceEvent)

func (t Tracer) emit(kind TraceKind, id EmployeeID, at calendar.Date, fields map[string]any) {
	if t == nil {
		return
	}
	t(TraceEvent{Kind: kind, EmployeeID: id, At: at, Fields: fields})
}

// =============================================================================
// LOGRUS SINK
// =============================================================================

// LogrusTracer adapts a logrus logger into a Tracer. Events are logged at
// debug level except override rejections, which are warnings the operator
// should see.
func LogrusTracer(log *logrus.Logger) Tracer {
	return func(ev TraceEvent) {
		entry := log.WithFields(logrus.Fields{
			"employee": string(ev.EmployeeID),
			"at":       ev.At.String(),
		})
		for k, v := range ev.Fields {
			entry = entry.WithField(k, v)
		}
		if ev.Kind == TraceOverrideRejected {
			entry.Warn(string(ev.Kind))
			return
		}
		entry.Debug(string(ev.Kind))
	}
}
