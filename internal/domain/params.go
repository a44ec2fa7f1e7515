package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParamType drives type checking of extracted parameter values.
type ParamType string

const (
	ParamText     ParamType = "text"
	ParamEmail    ParamType = "email"
	ParamWhen     ParamType = "when"
	ParamCategory ParamType = "category"
	ParamRange    ParamType = "range"
	ParamPriority ParamType = "priority"
)

// Calendar categories understood by the calendar tool.
const (
	CategoryFlight      = "flight"
	CategoryAppointment = "appointment"
	CategoryMeeting     = "meeting"
)

type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Prompt   string
}

var intentParams = map[IntentKind][]ParamSpec{
	IntentCalendarQuery: {
		{Name: "category", Type: ParamCategory},
		{Name: "range", Type: ParamRange},
		{Name: "keyword", Type: ParamText},
	},
	IntentSendNotification: {
		{Name: "message", Type: ParamText, Required: true, Prompt: "What should the reminder say?"},
		{Name: "time", Type: ParamWhen, Required: true, Prompt: "When should I remind you?"},
		{Name: "title", Type: ParamText},
		{Name: "priority", Type: ParamPriority},
	},
	IntentSendEmail: {
		{Name: "to", Type: ParamEmail, Required: true, Prompt: "Who should I email? Please give me their email address."},
		{Name: "body", Type: ParamText, Required: true, Prompt: "What would you like the email to say?"},
		{Name: "subject", Type: ParamText},
	},
}

// ParamsFor returns the parameter schema of kind, required parameters first
// in declaration order.
func ParamsFor(kind IntentKind) []ParamSpec {
	return append([]ParamSpec(nil), intentParams[kind]...)
}

func ParamSpecFor(kind IntentKind, name string) (ParamSpec, bool) {
	for _, spec := range intentParams[kind] {
		if spec.Name == name {
			return spec, true
		}
	}
	return ParamSpec{}, false
}

// MissingParams lists required parameters of kind that are absent or fail
// their type check, in schema order.
func MissingParams(kind IntentKind, params map[string]string) []string {
	var missing []string
	for _, spec := range intentParams[kind] {
		if !spec.Required {
			continue
		}
		if CheckParam(spec.Type, params[spec.Name]) != nil {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// InvalidOptionalParams lists optional parameters that are present but
// malformed.
func InvalidOptionalParams(kind IntentKind, params map[string]string) []string {
	var invalid []string
	for _, spec := range intentParams[kind] {
		v, ok := params[spec.Name]
		if spec.Required || !ok {
			continue
		}
		if CheckParam(spec.Type, v) != nil {
			invalid = append(invalid, spec.Name)
		}
	}
	return invalid
}

// ValidateParams returns a ValidationError naming every required parameter
// that is missing and every parameter that is malformed.
func ValidateParams(kind IntentKind, params map[string]string) error {
	bad := append(MissingParams(kind, params), InvalidOptionalParams(kind, params)...)
	if len(bad) == 0 {
		return nil
	}
	return NewError(KindValidation, string(kind), fmt.Errorf("missing or invalid parameters: %s", strings.Join(bad, ", ")))
}

// CheckParam type checks a single value.
func CheckParam(t ParamType, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty %s value", t)
	}

	switch t {
	case ParamText:
		return nil
	case ParamEmail:
		if _, err := ParseEmailAddress(value); err != nil {
			return err
		}
	case ParamWhen:
		if !looksTemporal(value) {
			return fmt.Errorf("%q is not a time", value)
		}
	case ParamCategory:
		if _, ok := NormalizeCategory(value); !ok {
			return fmt.Errorf("unknown category %q", value)
		}
	case ParamRange:
		if _, err := ParseRange(value); err != nil {
			return err
		}
	case ParamPriority:
		if _, err := ParsePriority(value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown parameter type %q", t)
	}
	return nil
}

// ParseEmailAddress accepts a bare address or a "Name <addr>" form and
// returns the bare address.
func ParseEmailAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid email address %q: %w", value, err)
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 1 || !strings.Contains(addr.Address[at+1:], ".") {
		return "", fmt.Errorf("invalid email address %q", value)
	}
	return addr.Address, nil
}

// NormalizeCategory maps singular or plural category names onto the
// canonical category.
func NormalizeCategory(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimSuffix(v, "s")
	switch v {
	case CategoryFlight, CategoryAppointment, CategoryMeeting:
		return v, true
	case "appt":
		return CategoryAppointment, true
	}
	return "", false
}

// ParsePriority parses a push priority in the range -2..2.
func ParsePriority(value string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid priority %q", value)
	}
	if p < -2 || p > 2 {
		return 0, fmt.Errorf("priority %d out of range", p)
	}
	return p, nil
}

var rangePattern = regexp.MustCompile(`^(\d+)\s*(h|hr|hrs|hours?|d|days?|w|wk|weeks?)$`)

// MaxRange is the longest look-ahead a calendar query may ask for.
const MaxRange = 365 * 24 * time.Hour

var namedRanges = map[string]time.Duration{
	"today":      24 * time.Hour,
	"tomorrow":   48 * time.Hour,
	"this week":  7 * 24 * time.Hour,
	"week":       7 * 24 * time.Hour,
	"next week":  14 * 24 * time.Hour,
	"this month": 30 * 24 * time.Hour,
	"month":      30 * 24 * time.Hour,
}

// ParseRange parses a look-ahead window such as "7d", "2 weeks", "48h" or
// "this week".
func ParseRange(value string) (time.Duration, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if d, ok := namedRanges[v]; ok {
		return d, nil
	}

	m := rangePattern.FindStringSubmatch(v)
	if m == nil {
		return 0, fmt.Errorf("invalid range %q", value)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid range %q", value)
	}

	unit := time.Hour
	switch m[2][0] {
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	}
	// Compare before multiplying so large counts cannot overflow.
	if int64(n) > int64(MaxRange/unit) {
		return 0, fmt.Errorf("range %q exceeds %d days", value, int(MaxRange/(24*time.Hour)))
	}
	return time.Duration(n) * unit, nil
}

var temporalWords = map[string]bool{
	"now": true, "today": true, "tonight": true, "tomorrow": true, "morning": true,
	"noon": true, "afternoon": true, "evening": true, "night": true, "midnight": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "next": true, "week": true, "weekend": true,
	"hour": true, "hours": true, "minute": true, "minutes": true, "am": true, "pm": true,
	"later": true, "soon": true, "asap": true, "immediately": true,
}

func looksTemporal(value string) bool {
	for _, r := range value {
		if unicode.IsDigit(r) {
			return true
		}
	}
	words := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if temporalWords[w] {
			return true
		}
	}
	return false
}
