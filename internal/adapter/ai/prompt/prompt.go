// Package prompt holds the model-independent part of intent classification:
// the instructions, the structured-output schema and the verdict parser
// shared by every LanguageModel backend.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// Verdict is the wire shape the model must produce. Parameters are a list of
// pairs because strict structured output does not allow open maps.
type Verdict struct {
	Intent       string      `json:"intent" jsonschema:"enum=calendar_query,enum=send_notification,enum=send_email,enum=clarify,enum=unknown"`
	Confidence   float64     `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Parameters   []Parameter `json:"parameters"`
	FollowUp     string      `json:"follow_up" jsonschema:"description=Question to ask when intent is clarify"`
	Alternatives []string    `json:"alternatives" jsonschema:"description=Other plausible intents; empty when unambiguous"`
	Summary      string      `json:"summary"`
}

type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SchemaName names the structured output format.
const SchemaName = "intent_verdict"

// Schema returns the JSON schema of Verdict as a generic map, ready to be
// embedded in a provider request.
func Schema() (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(&Verdict{})
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("prompt: marshal schema: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("prompt: decode schema: %w", err)
	}
	return out, nil
}

const classifyInstructions = `You are the intent classifier of Hiya, a voice assistant.
Convert the user's utterance into JSON that matches the provided schema. Do not converse and do not answer the request.

INTENTS:
- calendar_query: the user asks about upcoming calendar events.
- send_notification: the user wants a push reminder sent to their phone.
- send_email: the user wants an email sent to someone.
- clarify: the request is actionable but you cannot tell which intent or key details are unclear.
- unknown: small talk or anything outside the intents above.

RULES:
- Pick exactly one intent. List every other plausible intent in "alternatives".
- Only extract parameters that are stated. Never invent values.
- Keep time phrases as spoken ("tomorrow 9am", "in 2 hours"). Use "now" for immediate reminders.
- Email addresses must be complete addresses. Leave "to" empty when only a name is given.
- "confidence" is your probability that the intent is right.`

const answerInstructions = `You are the intent classifier of Hiya, a voice assistant.
The assistant asked the user a follow-up question and the utterance is the answer.
Extract values for the requested parameters and return JSON that matches the provided schema.

RULES:
- Set "intent" to the pending intent unless the user clearly asks for something different, in which case classify the new request.
- Only fill parameters the answer actually provides. Never invent values.
- Keep time phrases as spoken. Email addresses must be complete addresses.`

// System returns the instructions for req.
func System(req domain.ClassificationRequest) string {
	var b strings.Builder
	if req.Mode == domain.ModeAnswer {
		b.WriteString(answerInstructions)
	} else {
		b.WriteString(classifyInstructions)
	}

	b.WriteString("\n\nPARAMETERS:\n")
	for _, kind := range domain.ActionableKinds() {
		fmt.Fprintf(&b, "- %s:", kind)
		for i, spec := range domain.ParamsFor(kind) {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s (%s", spec.Name, spec.Type)
			if spec.Required {
				b.WriteString(", required")
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("Categories: flight, appointment, meeting. Ranges look like 7d, 2w, 48h, today, this week.\n")

	if !req.Now.IsZero() {
		tz := req.Timezone
		if tz == "" {
			tz = "UTC"
		}
		fmt.Fprintf(&b, "\nCurrent time: %s (%s).\n", req.Now.Format("Monday, January 2, 2006 15:04"), tz)
	}
	return b.String()
}

// User returns the user message for req, including recent history and the
// pending question when answering.
func User(req domain.ClassificationRequest) string {
	var b strings.Builder

	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, h := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Text)
		}
		b.WriteString("\n")
	}

	if req.Mode == domain.ModeAnswer {
		fmt.Fprintf(&b, "Pending intent: %s\n", req.Target)
		fmt.Fprintf(&b, "Question asked: %s\n", req.Question)
		fmt.Fprintf(&b, "Missing parameters: %s\n", strings.Join(req.Missing, ", "))
		if len(req.Known) > 0 {
			b.WriteString("Already known:")
			for _, spec := range domain.ParamsFor(req.Target) {
				if v, ok := req.Known[spec.Name]; ok {
					fmt.Fprintf(&b, " %s=%q", spec.Name, v)
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Utterance: %s", req.Text)
	return b.String()
}

var ErrNoJSON = errors.New("prompt: no JSON object in model output")

// ParseVerdict decodes model output into a verdict. It tolerates code fences
// and surrounding prose, and parameters given as an object instead of a
// list.
func ParseVerdict(raw string) (*domain.ModelVerdict, error) {
	body := extractObject(raw)
	if body == "" {
		return nil, ErrNoJSON
	}

	var wire struct {
		Intent       string          `json:"intent"`
		Confidence   float64         `json:"confidence"`
		Parameters   json.RawMessage `json:"parameters"`
		FollowUp     string          `json:"follow_up"`
		Alternatives []string        `json:"alternatives"`
		Summary      string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, fmt.Errorf("prompt: decode verdict: %w", err)
	}
	if strings.TrimSpace(wire.Intent) == "" {
		return nil, errors.New("prompt: verdict has no intent")
	}

	params, err := decodeParameters(wire.Parameters)
	if err != nil {
		return nil, err
	}

	return &domain.ModelVerdict{
		Intent:       wire.Intent,
		Confidence:   wire.Confidence,
		Parameters:   params,
		FollowUp:     wire.FollowUp,
		Alternatives: wire.Alternatives,
		Summary:      wire.Summary,
	}, nil
}

func decodeParameters(raw json.RawMessage) (map[string]string, error) {
	out := make(map[string]string)
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return out, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []Parameter
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("prompt: decode parameters: %w", err)
		}
		for _, p := range list {
			if p.Name != "" && strings.TrimSpace(p.Value) != "" {
				out[strings.ToLower(p.Name)] = p.Value
			}
		}
		return out, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("prompt: decode parameters: %w", err)
	}
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				out[strings.ToLower(k)] = val
			}
		default:
			out[strings.ToLower(k)] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
