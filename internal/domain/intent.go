package domain

import (
	"strings"
)

// IntentKind is the closed set of goals the assistant can act on.
type IntentKind string

const (
	IntentCalendarQuery    IntentKind = "calendar_query"
	IntentSendNotification IntentKind = "send_notification"
	IntentSendEmail        IntentKind = "send_email"
	IntentClarify          IntentKind = "clarify"
	IntentUnknown          IntentKind = "unknown"
)

var intentAliases = map[string]IntentKind{
	"calendar_query":    IntentCalendarQuery,
	"calendar_lookup":   IntentCalendarQuery,
	"calendar":          IntentCalendarQuery,
	"send_notification": IntentSendNotification,
	"push_notification": IntentSendNotification,
	"notification":      IntentSendNotification,
	"reminder":          IntentSendNotification,
	"send_email":        IntentSendEmail,
	"email":             IntentSendEmail,
	"clarify":           IntentClarify,
	"clarification":     IntentClarify,
	"unknown":           IntentUnknown,
	"smalltalk":         IntentUnknown,
	"small_talk":        IntentUnknown,
}

// ParseIntentKind maps a model label onto an IntentKind. Labels outside the
// known set resolve to IntentUnknown.
func ParseIntentKind(label string) IntentKind {
	kind, ok := intentAliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return IntentUnknown
	}
	return kind
}

// Actionable reports whether the kind maps to a tool handler.
func (k IntentKind) Actionable() bool {
	switch k {
	case IntentCalendarQuery, IntentSendNotification, IntentSendEmail:
		return true
	}
	return false
}

// ActionableKinds lists the kinds that reach the tool registry.
func ActionableKinds() []IntentKind {
	return []IntentKind{IntentCalendarQuery, IntentSendNotification, IntentSendEmail}
}

// Intent is the classified goal of a single utterance. Values are never
// mutated after construction; merging a clarification answer yields a new
// Intent.
type Intent struct {
	Kind       IntentKind        `json:"kind" bson:"kind"`
	Params     map[string]string `json:"params,omitempty" bson:"params,omitempty"`
	Confidence float64           `json:"confidence" bson:"confidence"`
	Complete   bool              `json:"complete" bson:"complete"`
	Question   string            `json:"question,omitempty" bson:"question,omitempty"`
	Target     IntentKind        `json:"target,omitempty" bson:"target,omitempty"`
	Missing    []string          `json:"missing,omitempty" bson:"missing,omitempty"`
}

// NewIntent builds an intent of the given kind. Empty parameter values are
// dropped and Complete is derived from the parameter schema.
func NewIntent(kind IntentKind, params map[string]string, confidence float64) Intent {
	cleaned := cleanParams(params)
	return Intent{
		Kind:       kind,
		Params:     cleaned,
		Confidence: confidence,
		Complete:   kind.Actionable() && len(MissingParams(kind, cleaned)) == 0,
	}
}

// Clarification builds a clarify intent. known carries the target parameters
// already extracted so that the answer can be merged into them later.
func Clarification(target IntentKind, question string, missing []string, known map[string]string, confidence float64) Intent {
	return Intent{
		Kind:       IntentClarify,
		Params:     cleanParams(known),
		Confidence: confidence,
		Question:   question,
		Target:     target,
		Missing:    append([]string(nil), missing...),
	}
}

// Actionable reports whether the intent can be dispatched as-is.
func (i Intent) Actionable() bool {
	return i.Kind.Actionable() && i.Complete
}

// Param returns the named parameter or "".
func (i Intent) Param(name string) string {
	return i.Params[name]
}

// ParamsCopy returns a copy of the parameter map.
func (i Intent) ParamsCopy() map[string]string {
	return cleanParams(i.Params)
}

// Merge returns a new intent of the clarification target with values layered
// over the already known parameters.
func (i Intent) Merge(values map[string]string, confidence float64) Intent {
	merged := cleanParams(i.Params)
	for k, v := range cleanParams(values) {
		merged[k] = v
	}
	kind := i.Kind
	if kind == IntentClarify {
		kind = i.Target
	}
	return NewIntent(kind, merged, confidence)
}

func cleanParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
