package audithook

// Action constants for audit events.
const (
	// Client actions
	ActionClientCreated = "client.created"
	ActionClientDeleted = "client.deleted"

	// Project actions
	ActionProjectCreated = "project.created"
	ActionProjectDeleted = "project.deleted"

	// Timer actions
	ActionTimerStarted = "timer.started"
	ActionTimerStopped = "timer.stopped"

	// Invoice actions
	ActionInvoiceCreated       = "invoice.created"
	ActionInvoiceStatusChanged = "invoice.status_changed"
	ActionInvoicePaid          = "invoice.paid"
	ActionInvoiceDeleted       = "invoice.deleted"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"

	// Aggregate actions
	ActionAggregateSyncFailed = "aggregate.sync_failed"
	ActionAggregateReconciled = "aggregate.reconciled"
	ActionAggregateDrift      = "aggregate.drift"
)

// Resource constants for audit events.
const (
	ResourceClient    = "client"
	ResourceProject   = "project"
	ResourceTimeEntry = "time_entry"
	ResourceInvoice   = "invoice"
	ResourcePayment   = "payment"
	ResourceAggregate = "aggregate"
)

// Category constants for audit events.
const (
	CategoryAccount     = "account"
	CategoryTracking    = "tracking"
	CategoryBilling     = "billing"
	CategoryPayment     = "payment"
	CategoryConsistency = "consistency"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
