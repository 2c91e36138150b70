package logging

// Shared attribute keys. Keeping these as constants avoids drift between
// components that emit the same field.
const (
	FieldComponent   = "component"
	FieldUnitID      = "unit_id"
	FieldStage       = "stage"
	FieldLanguage    = "language"
	FieldProvider    = "provider"
	FieldCapability  = "capability"
	FieldAttempt     = "attempt"
	FieldCostUSD     = "cost_usd"
	FieldSimilarity  = "similarity"
	FieldSlot        = "slot"
	FieldEventType   = "event_type"
	FieldErrorHint   = "error_hint"
	FieldDurationMS  = "duration_ms"
	FieldReservation = "reservation_id"
)
