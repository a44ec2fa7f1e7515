package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

const capabilitiesQuestion = "Sorry, I can't help with that yet. I can check your calendar, send you a reminder or send an email for you. What would you like me to do?"

var capabilityPhrases = map[domain.IntentKind]string{
	domain.IntentCalendarQuery:    "check your calendar",
	domain.IntentSendNotification: "send you a reminder",
	domain.IntentSendEmail:        "send an email",
}

// combinedQuestions covers missing sets that read badly as one prompt per
// parameter. Keys are the sorted, comma-joined parameter names.
var combinedQuestions = map[domain.IntentKind]map[string]string{
	domain.IntentSendNotification: {
		"message,time": "Remind you about what, and when?",
	},
	domain.IntentSendEmail: {
		"body,to": "Who should I email, and what should it say?",
	},
}

// QuestionFor returns the follow-up question for an intent kind missing the
// given parameters. The result depends only on the kind and the set of
// names.
func QuestionFor(kind domain.IntentKind, missing []string) string {
	if len(missing) == 0 {
		return capabilitiesQuestion
	}

	names := append([]string(nil), missing...)
	sort.Strings(names)
	if q, ok := combinedQuestions[kind][strings.Join(names, ",")]; ok {
		return q
	}

	if len(names) == 1 {
		if spec, ok := domain.ParamSpecFor(kind, names[0]); ok && spec.Prompt != "" {
			return spec.Prompt
		}
	}

	return fmt.Sprintf("To %s I still need the %s. Could you tell me?", capability(kind), joinOr(names, "and"))
}

func ambiguityQuestion(kinds []domain.IntentKind) string {
	phrases := make([]string, 0, len(kinds))
	for _, k := range kinds {
		phrases = append(phrases, capability(k))
	}
	return fmt.Sprintf("Do you want me to %s?", joinOr(phrases, "or"))
}

func confirmQuestion(kind domain.IntentKind) string {
	return fmt.Sprintf("Just to be sure, do you want me to %s? Please tell me again with the details.", capability(kind))
}

func capability(kind domain.IntentKind) string {
	if p, ok := capabilityPhrases[kind]; ok {
		return p
	}
	return "help with that"
}

func joinOr(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " " + conj + " " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + conj + " " + items[len(items)-1]
}
