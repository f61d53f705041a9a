package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "test-user@example.com"

func TestLookup(t *testing.T) {
	p, ok := Lookup("crowdstrike")
	require.True(t, ok)
	assert.Equal(t, "CrowdStrike Falcon", p.Name)
	assert.Equal(t, "https://falcon.crowdstrike.com", p.DefaultIssuer)

	_, ok = Lookup("nope")
	assert.False(t, ok)

	e, ok := LookupEvent("zscaler", "dlp-violation")
	require.True(t, ok)
	assert.Equal(t, OktaRiskSchema, e.SchemaURI)
	assert.Equal(t, CategoryRisk, e.Category)

	_, ok = LookupEvent("zscaler", "malware-detected")
	assert.False(t, ok, "events are scoped to their provider")
	_, ok = LookupEvent("", "")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	_, _, err := Resolve("ghost", "x")
	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "ghost", lookupErr.ProviderID)
	assert.Contains(t, err.Error(), "unknown provider")

	_, _, err = Resolve("crowdstrike", "ghost")
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "ghost", lookupErr.EventID)

	p, e, err := Resolve("custom", "session-revoked")
	require.NoError(t, err)
	assert.Equal(t, "custom", p.ID)
	assert.Equal(t, CategoryLifecycle, e.Category)
}

func TestRiskPayloadShape(t *testing.T) {
	for _, p := range Providers() {
		for _, e := range p.Events {
			if e.Category != CategoryRisk {
				continue
			}
			for _, level := range RiskLevels {
				fragment := e.BuildPayload(testEmail, 1700000000, level)
				require.Len(t, fragment, 1, "%s/%s", p.ID, e.ID)
				body, ok := fragment[e.SchemaURI].(map[string]interface{})
				require.True(t, ok, "%s/%s keyed by schema", p.ID, e.ID)

				assert.Equal(t, int64(1700000000), body["event_timestamp"])
				assert.Equal(t, string(level), body["current_level"])
				assert.Equal(t, "low", body["previous_level"])
				assert.Equal(t, "policy", body["initiating_entity"])
				assert.Equal(t, map[string]interface{}{"en": e.AdminReason}, body["reason_admin"])
				assert.NotEmpty(t, body["reason_user"].(map[string]interface{})["en"])

				subject := body["subject"].(map[string]interface{})
				user := subject["user"]
				assert.NotNil(t, user)
			}
		}
	}
}

func TestPreviousLevel(t *testing.T) {
	for _, level := range RiskLevels {
		assert.Equal(t, RiskLow, PreviousLevel(level))
	}
}

func TestLifecyclePayloadIgnoresRisk(t *testing.T) {
	found := 0
	for _, p := range Providers() {
		for _, e := range p.Events {
			if e.Category != CategoryLifecycle {
				continue
			}
			found++
			base := e.BuildPayload(testEmail, 1700000000, RiskLow)
			for _, level := range []RiskLevel{RiskMedium, RiskHigh, RiskLevel("bogus")} {
				assert.Equal(t, base, e.BuildPayload(testEmail, 1700000000, level), "%s/%s", p.ID, e.ID)
			}
			assert.Equal(t, map[string]interface{}{
				e.SchemaURI: map[string]interface{}{
					"subject":         map[string]interface{}{"subject_type": "email", "email": testEmail},
					"event_timestamp": int64(1700000000),
				},
			}, base)
		}
	}
	assert.Greater(t, found, 0)
}

func TestScenariosReferenceCatalog(t *testing.T) {
	for _, s := range Scenarios() {
		require.NotEmpty(t, s.Steps)
		for i, step := range s.Steps {
			_, ok := LookupEvent(step.ProviderID, step.EventID)
			assert.True(t, ok, "%s step %d references %s/%s", s.ID, i, step.ProviderID, step.EventID)
			assert.NotEmpty(t, step.Description, "%s step %d", s.ID, i)
		}
		assert.False(t, s.Steps[len(s.Steps)-1].Propagate, "%s last step never delays", s.ID)
	}
	_, ok := LookupScenario("risk-escalation")
	assert.True(t, ok)
	_, ok = LookupScenario("missing")
	assert.False(t, ok)
}

func TestCatalogCopiesAreIndependent(t *testing.T) {
	providers := Providers()
	label := providers[0].Events[0].Label
	providers[0].Events[0].Label = "changed"
	providers[0].Events = append(providers[0].Events[:0], Event{ID: "injected"})
	assert.Equal(t, label, Providers()[0].Events[0].Label)

	p, ok := Lookup("crowdstrike")
	require.True(t, ok)
	count := len(p.Events)
	p.Events[0] = Event{ID: "injected"}
	again, _ := Lookup("crowdstrike")
	assert.Len(t, again.Events, count)
	assert.NotEqual(t, "injected", again.Events[0].ID)
	_, ok = again.Event("injected")
	assert.False(t, ok)

	s, ok := LookupScenario("compromised-user")
	require.True(t, ok)
	s.Steps[0].EventID = "injected"
	Scenarios()[0].Steps[0].Risk = RiskLow
	fresh, _ := LookupScenario("compromised-user")
	assert.Equal(t, "malware-detected", fresh.Steps[0].EventID)
	assert.Equal(t, RiskHigh, fresh.Steps[0].Risk)
}

func TestCustomEvent(t *testing.T) {
	risk := NewCustomEvent(OktaRiskSchema, "admin says", "")
	assert.Equal(t, CategoryRisk, risk.Category)
	fragment := risk.BuildPayloadWith(testEmail, 10, RiskHigh, map[string]interface{}{
		"device":        "laptop-1",
		"current_level": "overridden?",
	})
	body := fragment[OktaRiskSchema].(map[string]interface{})
	assert.Equal(t, "laptop-1", body["device"])
	assert.Equal(t, "high", body["current_level"], "built-in fields are not overridden")
	assert.Equal(t, map[string]interface{}{"en": DefaultUserReason}, body["reason_user"])

	lifecycle := NewCustomEvent(RiscAccountDisabledSchema, "", "")
	assert.Equal(t, CategoryLifecycle, lifecycle.Category)
	assert.Equal(t, "account-disabled", lifecycle.Label)
}

func TestParseRiskLevel(t *testing.T) {
	level, err := ParseRiskLevel(" HIGH ")
	assert.NoError(t, err)
	assert.Equal(t, RiskHigh, level)
	_, err = ParseRiskLevel("critical")
	assert.Error(t, err)
}
