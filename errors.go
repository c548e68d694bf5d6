package tally

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tally: not found")
	ErrAlreadyExists = errors.New("tally: already exists")
	ErrInvalidInput  = errors.New("tally: invalid input")
	ErrConflict      = errors.New("tally: conflict")
	ErrUnauthorized  = errors.New("tally: unauthorized")

	// Entity lookups
	ErrClientNotFound      = errors.New("tally: client not found")
	ErrProjectNotFound     = errors.New("tally: project not found")
	ErrInvoiceNotFound     = errors.New("tally: invoice not found")
	ErrTimeEntryNotFound   = errors.New("tally: time entry not found")
	ErrPaymentNotFound     = errors.New("tally: payment not found")
	ErrSyncFailureNotFound = errors.New("tally: sync failure not found")

	// Client errors
	ErrClientHasProjects = errors.New("tally: client still has projects")

	// Timer errors
	ErrTimerRunning        = errors.New("tally: a timer is already running")
	ErrTimerAlreadyStopped = errors.New("tally: timer already stopped")
	ErrTimerBusy           = errors.New("tally: timer lock not obtained")

	// Invoice errors
	ErrInvalidTransition   = errors.New("tally: invalid invoice status transition")
	ErrStatusChanged       = errors.New("tally: invoice status changed concurrently")
	ErrInvoiceNotEditable  = errors.New("tally: invoice can no longer be edited")
	ErrInvoicePaid         = errors.New("tally: invoice already paid")
	ErrInvoiceCancelled    = errors.New("tally: invoice is cancelled")
	ErrDuplicateNumber     = errors.New("tally: duplicate invoice number")
	ErrTimeEntryInvoiced   = errors.New("tally: time entry already invoiced")
	ErrNumberingFailed     = errors.New("tally: invoice numbering failed")
	ErrCurrencyUnsupported = errors.New("tally: currency not supported")

	// Payment gateway errors
	ErrGatewayNotConfigured = errors.New("tally: payment gateway not configured")
	ErrPaymentNotSettled    = errors.New("tally: gateway payment not settled")

	// Store errors
	ErrStoreNotReady     = errors.New("tally: store not ready")
	ErrStoreClosed       = errors.New("tally: store is closed")
	ErrTransactionFailed = errors.New("tally: transaction failed")
	ErrMigrationFailed   = errors.New("tally: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tally: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tally: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrTimeEntryNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrSyncFailureNotFound)
}

// IsConflict returns true if the request clashes with the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrTimerRunning) ||
		errors.Is(err, ErrTimerAlreadyStopped) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrStatusChanged) ||
		errors.Is(err, ErrInvoiceNotEditable) ||
		errors.Is(err, ErrInvoicePaid) ||
		errors.Is(err, ErrInvoiceCancelled) ||
		errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrTimeEntryInvoiced) ||
		errors.Is(err, ErrClientHasProjects)
}

// IsValidation returns true if the input was rejected.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrStatusChanged) ||
		errors.Is(err, ErrTimerBusy) ||
		errors.Is(err, ErrNumberingFailed)
}
