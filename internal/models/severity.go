package models

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Tiers lists the dashboard buckets in display order.
var Tiers = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity is the ingestion-side parser: case and surrounding space are
// ignored, anything outside low/medium/high is rejected.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, nil
	default:
		return "", fmt.Errorf("severity must be one of low, medium, high: got %q", s)
	}
}

// NormalizeSeverity is the read-side fold used for grouping. Records written
// before the vocabulary was fixed may hold other values; those land in medium.
func NormalizeSeverity(s Severity) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(string(s)))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev
	default:
		return SeverityMedium
	}
}
