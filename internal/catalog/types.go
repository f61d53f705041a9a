// Package catalog is the static registry of simulated security vendors, the events they emit and the scripted
// scenarios that chain them.
package catalog

import (
	"fmt"
	"strings"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

func ParseRiskLevel(value string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(value))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	}
	return "", fmt.Errorf("invalid risk level %q (expected low, medium or high)", value)
}

// Severity is the catalog's static rating of an event, independent of the level sent.
type Severity = RiskLevel

type Category string

const (
	CategoryRisk      Category = "risk"
	CategoryLifecycle Category = "lifecycle"
)

// Event describes one signal a provider can emit. Category selects the payload shape.
type Event struct {
	ID          string
	Label       string
	SchemaURI   string
	Severity    Severity
	Category    Category
	Description string
	AdminReason string
	UserReason  string
}

type Provider struct {
	ID            string
	Name          string
	DefaultIssuer string
	Description   string
	Events        []Event
}

// Event returns the provider's event with the given id.
func (p Provider) Event(eventID string) (Event, bool) {
	for _, e := range p.Events {
		if e.ID == eventID {
			return e, true
		}
	}
	return Event{}, false
}

// LookupError reports a provider/event pair that is not in the catalog.
type LookupError struct {
	ProviderID string
	EventID    string
}

func (e *LookupError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("unknown provider %q", e.ProviderID)
	}
	return fmt.Sprintf("unknown event %q for provider %q", e.EventID, e.ProviderID)
}
