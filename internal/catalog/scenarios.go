package catalog

// Step is one transmission in a scenario. Propagate requests the inter-step delay after it.
type Step struct {
	ProviderID  string
	EventID     string
	Risk        RiskLevel
	Propagate   bool
	Description string
}

type Scenario struct {
	ID          string
	Name        string
	Description string
	Steps       []Step
}

var scenarioList = []Scenario{
	{
		ID:          "compromised-user",
		Name:        "Compromised User",
		Description: "Endpoint compromise leads to data exfiltration and phishing across three vendors.",
		Steps: []Step{
			{ProviderID: "crowdstrike", EventID: "malware-detected", Risk: RiskHigh, Propagate: true,
				Description: "Falcon finds malware on the user's laptop."},
			{ProviderID: "zscaler", EventID: "dlp-violation", Risk: RiskHigh, Propagate: true,
				Description: "The infected device uploads sensitive files."},
			{ProviderID: "proofpoint", EventID: "phishing-clicked", Risk: RiskHigh,
				Description: "Phishing mail is sent from the compromised mailbox."},
		},
	},
	{
		ID:          "risk-escalation",
		Name:        "Risk Escalation",
		Description: "Same threat reported three times with escalating severity.",
		Steps: []Step{
			{ProviderID: "crowdstrike", EventID: "suspicious-process", Risk: RiskLow, Propagate: true,
				Description: "An unusual process is flagged for review."},
			{ProviderID: "crowdstrike", EventID: "suspicious-process", Risk: RiskMedium, Propagate: true,
				Description: "The process spreads to other directories."},
			{ProviderID: "crowdstrike", EventID: "suspicious-process", Risk: RiskHigh,
				Description: "The process is confirmed malicious."},
		},
	},
	{
		ID:          "multi-vector-attack",
		Name:        "Multi-Vector Attack",
		Description: "Attacker signs in, moves laterally, steals credentials, then exfiltrates data across four security layers.",
		Steps: []Step{
			{ProviderID: "microsoft", EventID: "risky-signin", Risk: RiskMedium, Propagate: true,
				Description: "Sign-in from an unfamiliar location."},
			{ProviderID: "paloalto", EventID: "lateral-movement", Risk: RiskHigh, Propagate: true,
				Description: "The session scans internal hosts."},
			{ProviderID: "crowdstrike", EventID: "credential-theft", Risk: RiskHigh, Propagate: true,
				Description: "Credentials are dumped from memory."},
			{ProviderID: "netskope", EventID: "data-exfiltration", Risk: RiskHigh,
				Description: "Data leaves through an unsanctioned cloud app."},
		},
	},
}

func (s Scenario) clone() Scenario {
	s.Steps = append([]Step(nil), s.Steps...)
	return s
}

// Scenarios returns copies of the built-in scenarios; changes to them do not reach the catalog.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarioList))
	for i, s := range scenarioList {
		out[i] = s.clone()
	}
	return out
}

func LookupScenario(id string) (Scenario, bool) {
	for _, s := range scenarioList {
		if s.ID == id {
			return s.clone(), true
		}
	}
	return Scenario{}, false
}
