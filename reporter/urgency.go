package reporter

import "strings"

// Urgency codes as stored in the Urgency column.
const (
	UrgencyImmediate   = "🔴"
	UrgencyAttention   = "🟡"
	UrgencyImprovement = "🟢"
)

// UrgencyOption is one entry of the form's urgency select.
type UrgencyOption struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// UrgencyOptions lists the choices in form order. Attention is the default.
var UrgencyOptions = []UrgencyOption{
	{Name: "Immediate", Code: UrgencyImmediate, Label: UrgencyImmediate + " Immediate Danger - Stop Work Required"},
	{Name: "Attention", Code: UrgencyAttention, Label: UrgencyAttention + " Needs Attention - Potential for Harm"},
	{Name: "Improvement", Code: UrgencyImprovement, Label: UrgencyImprovement + " General Improvement / Observation"},
}

// NormalizeUrgency keeps only the leading symbolic tag of a form label:
// - "🟡 Needs Attention - ..." -> 🟡
// - immediate/attention/improvement (any case) -> matching code
// - blank -> Attention
// - anything else -> its first word, unchanged
func NormalizeUrgency(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return UrgencyAttention
	}
	for _, opt := range UrgencyOptions {
		if strings.EqualFold(s, opt.Name) {
			return opt.Code
		}
	}
	return strings.Fields(s)[0]
}

// UrgencyName maps a stored code back to its option name, or "unknown".
func UrgencyName(code string) string {
	for _, opt := range UrgencyOptions {
		if opt.Code == code {
			return strings.ToLower(opt.Name)
		}
	}
	return "unknown"
}
