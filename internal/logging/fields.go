package logging

// Standardized attribute keys. Call sites use these instead of ad-hoc
// strings so the console handler can promote and order them predictably.
const (
	FieldComponent       = "component"
	FieldEventType       = "event_type"
	FieldErrorHint       = "error_hint"
	FieldJobID           = "job_id"
	FieldStage           = "stage"
	FieldProgressStage   = "progress_stage"
	FieldProgressPercent = "progress_percent"
	FieldProgressMessage = "progress_message"
)
