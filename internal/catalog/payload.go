package catalog

import (
	"strings"

	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
)

const (
	OktaRiskSchema             = "https://schemas.okta.com/secevent/okta/event-type/user-risk-change"
	RiscSessionRevokedSchema   = "https://schemas.openid.net/secevent/risc/event-type/session-revoked"
	RiscCredentialChangeSchema = "https://schemas.openid.net/secevent/risc/event-type/credential-change-required"
	RiscAccountDisabledSchema  = "https://schemas.openid.net/secevent/risc/event-type/account-disabled"
	DefaultUserReason          = "A security event was detected on your account"
	initiatingEntity           = "policy"
)

// PreviousLevel is the level reported as the transition origin. Every level, including low, maps to low.
func PreviousLevel(RiskLevel) RiskLevel {
	return RiskLow
}

// BuildPayload returns the events claim fragment for this event: a single entry keyed by the schema URI.
// Lifecycle events ignore risk.
func (e Event) BuildPayload(email string, timestampSeconds int64, risk RiskLevel) map[string]interface{} {
	return e.BuildPayloadWith(email, timestampSeconds, risk, nil)
}

// BuildPayloadWith is BuildPayload with extra fields merged into the inner event object. Built-in fields win.
func (e Event) BuildPayloadWith(email string, timestampSeconds int64, risk RiskLevel, extra map[string]interface{}) map[string]interface{} {
	var body map[string]interface{}
	switch e.Category {
	case CategoryLifecycle:
		body = map[string]interface{}{
			"subject": map[string]interface{}{
				"subject_type": "email",
				"email":        email,
			},
			"event_timestamp": timestampSeconds,
		}
	default:
		userReason := e.UserReason
		if userReason == "" {
			userReason = DefaultUserReason
		}
		body = map[string]interface{}{
			"event_timestamp":   timestampSeconds,
			"current_level":     string(risk),
			"previous_level":    string(PreviousLevel(risk)),
			"initiating_entity": initiatingEntity,
			"reason_admin":      map[string]interface{}{"en": e.AdminReason},
			"reason_user":       map[string]interface{}{"en": userReason},
			"subject": map[string]interface{}{
				"user": goSet.NewEmailSubjectIdentifier(email),
			},
		}
	}
	for k, v := range extra {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
	return map[string]interface{}{e.SchemaURI: body}
}

// NewCustomEvent describes an operator-defined event. Schemas for user risk change use the risk shape.
func NewCustomEvent(schemaURI, adminReason, userReason string) Event {
	category := CategoryLifecycle
	if strings.Contains(schemaURI, "user-risk-change") {
		category = CategoryRisk
	}
	label := schemaURI
	if i := strings.LastIndex(schemaURI, "/"); i >= 0 && i < len(schemaURI)-1 {
		label = schemaURI[i+1:]
	}
	return Event{
		ID:          "custom",
		Label:       label,
		SchemaURI:   schemaURI,
		Severity:    RiskMedium,
		Category:    category,
		Description: "Operator defined event",
		AdminReason: adminReason,
		UserReason:  userReason,
	}
}
