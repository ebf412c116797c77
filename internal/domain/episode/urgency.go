package episode

import "strings"

// Urgency is the escalation tier supplied by the external predictor.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
	UrgencyCritical  Urgency = "CRITICAL"
)

var urgencyOrder = map[Urgency]int{
	UrgencyLow:       1,
	UrgencyMedium:    2,
	UrgencyHigh:      3,
	UrgencyEmergency: 4,
	UrgencyCritical:  5,
}

// ParseUrgency accepts the predictor's urgency label case-insensitively. Empty stays empty.
func ParseUrgency(raw string) (Urgency, error) {
	clean := Urgency(strings.ToUpper(strings.TrimSpace(raw)))
	if clean == "" {
		return "", nil
	}
	if _, ok := urgencyOrder[clean]; !ok {
		return "", validationError("unknown urgency %q", raw)
	}
	return clean, nil
}

// AtLeast reports whether u ranks at or above other.
func (u Urgency) AtLeast(other Urgency) bool {
	return urgencyOrder[u] >= urgencyOrder[other]
}

// EscalateUrgency applies local danger-sign escalation to an external urgency.
// Danger signs raise the result to at least HIGH; nothing here ever lowers it.
func EscalateUrgency(external Urgency, signs []DangerSign) Urgency {
	if len(signs) == 0 {
		return external
	}
	if external.AtLeast(UrgencyHigh) {
		return external
	}
	return UrgencyHigh
}
