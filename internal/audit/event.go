// Package audit queues best-effort security log writes.
//
// Rate limit decisions and CSRF validations must never wait on, or fail
// because of, the database. Producers call Emit, which never blocks; a small
// worker pool drains the queue into repository.SecurityLogRepository.
package audit

import (
	"github.com/naazbooks/storefront/internal/models"
)

// Kind identifies which security log table an event is written to.
type Kind string

const (
	KindRateLimitLog       Kind = "rate_limit_log"
	KindRateLimitViolation Kind = "rate_limit_violation"
	KindCSRFValidation     Kind = "csrf_validation"
)

// Event is one queued log row. Exactly one of the payload fields is set,
// matching Kind.
type Event struct {
	Kind           Kind
	RateLimitLog   *models.RateLimitLog
	Violation      *models.RateLimitViolation
	CSRFValidation *models.CSRFValidationLog
}

// Emitter accepts events for asynchronous logging.
type Emitter interface {
	Emit(event *Event)
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(*Event) {}

// RateLimitLogEvent wraps a rate_limit_logs row.
func RateLimitLogEvent(row models.RateLimitLog) *Event {
	return &Event{Kind: KindRateLimitLog, RateLimitLog: &row}
}

// ViolationEvent wraps a rate_limit_violations row.
func ViolationEvent(row models.RateLimitViolation) *Event {
	return &Event{Kind: KindRateLimitViolation, Violation: &row}
}

// CSRFValidationEvent wraps a csrf_validation_logs row.
func CSRFValidationEvent(row models.CSRFValidationLog) *Event {
	return &Event{Kind: KindCSRFValidation, CSRFValidation: &row}
}
