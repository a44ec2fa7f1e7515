package domain

import "time"

// ErrorDetail is the user-safe part of a failed tool call.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind" bson:"kind"`
	Message string    `json:"message" bson:"message"`
}

// ToolPayload carries the structured output of whichever tool ran.
type ToolPayload struct {
	// calendar_query
	Events      []CalendarEvent `json:"events,omitempty" bson:"events,omitempty"`
	WindowStart time.Time       `json:"window_start,omitempty" bson:"window_start,omitempty"`
	WindowEnd   time.Time       `json:"window_end,omitempty" bson:"window_end,omitempty"`
	Category    string          `json:"category,omitempty" bson:"category,omitempty"`
	Keyword     string          `json:"keyword,omitempty" bson:"keyword,omitempty"`

	// send_notification
	DeliveryID string `json:"delivery_id,omitempty" bson:"delivery_id,omitempty"`
	Message    string `json:"message,omitempty" bson:"message,omitempty"`
	When       string `json:"when,omitempty" bson:"when,omitempty"`

	// send_email
	Recipient   string `json:"recipient,omitempty" bson:"recipient,omitempty"`
	Subject     string `json:"subject,omitempty" bson:"subject,omitempty"`
	EmailStatus string `json:"email_status,omitempty" bson:"email_status,omitempty"`
}

type ToolResult struct {
	Tool     IntentKind    `json:"tool" bson:"tool"`
	Success  bool          `json:"success" bson:"success"`
	Summary  string        `json:"summary" bson:"summary"`
	Payload  ToolPayload   `json:"payload" bson:"payload"`
	Error    *ErrorDetail  `json:"error,omitempty" bson:"error,omitempty"`
	Attempts int           `json:"attempts" bson:"attempts"`
	Duration time.Duration `json:"duration" bson:"duration"`
}

func SucceededResult(tool IntentKind, summary string, payload ToolPayload) ToolResult {
	return ToolResult{Tool: tool, Success: true, Summary: summary, Payload: payload}
}

// FailedResult builds a failed result. reason must be safe to show users.
func FailedResult(tool IntentKind, kind ErrorKind, summary, reason string) ToolResult {
	return ToolResult{
		Tool:    tool,
		Summary: summary,
		Error:   &ErrorDetail{Kind: kind, Message: reason},
	}
}
