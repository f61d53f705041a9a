package catalog

func riskEvent(id, label string, severity Severity, description, adminReason, userReason string) Event {
	return Event{
		ID:          id,
		Label:       label,
		SchemaURI:   OktaRiskSchema,
		Severity:    severity,
		Category:    CategoryRisk,
		Description: description,
		AdminReason: adminReason,
		UserReason:  userReason,
	}
}

func lifecycleEvent(id, label, schemaURI string, severity Severity, description string) Event {
	return Event{
		ID:          id,
		Label:       label,
		SchemaURI:   schemaURI,
		Severity:    severity,
		Category:    CategoryLifecycle,
		Description: description,
	}
}

var providerList = []Provider{
	{
		ID:            "crowdstrike",
		Name:          "CrowdStrike Falcon",
		DefaultIssuer: "https://falcon.crowdstrike.com",
		Description:   "Endpoint detection and response platform",
		Events: []Event{
			riskEvent("malware-detected", "Malware Detected", RiskHigh,
				"Malware identified on user endpoint",
				"Malware detected on user endpoint by CrowdStrike Falcon",
				"Malicious software was found on one of your devices"),
			riskEvent("suspicious-process", "Suspicious Process", RiskMedium,
				"Suspicious process execution detected",
				"Suspicious process execution detected on endpoint",
				"Unusual activity was detected on one of your devices"),
			riskEvent("ioc-match", "IOC Match", RiskHigh,
				"Indicator of compromise matched threat intelligence",
				"Indicator of compromise matched known threat intelligence",
				""),
			riskEvent("credential-theft", "Credential Theft Attempt", RiskHigh,
				"Credential theft attempt detected",
				"Credential theft attempt detected by CrowdStrike Falcon",
				"Someone may be trying to steal your password"),
		},
	},
	{
		ID:            "zscaler",
		Name:          "Zscaler ZIA",
		DefaultIssuer: "https://zsapi.zscaler.net",
		Description:   "Cloud security and web gateway",
		Events: []Event{
			riskEvent("dlp-violation", "DLP Policy Violation", RiskHigh,
				"Data loss prevention policy violation detected",
				"DLP policy violation: sensitive data exfiltration attempted",
				"A transfer of sensitive data from your account was blocked"),
			riskEvent("malware-blocked", "Malware Download Blocked", RiskMedium,
				"Attempted malware download was blocked",
				"Malware download attempt blocked by Zscaler ZIA",
				""),
			riskEvent("suspicious-cloud", "Suspicious Cloud Activity", RiskMedium,
				"Suspicious cloud application activity detected",
				"Suspicious cloud application activity detected",
				""),
		},
	},
	{
		ID:            "paloalto",
		Name:          "Palo Alto Cortex XDR",
		DefaultIssuer: "https://api.xdr.paloaltonetworks.com",
		Description:   "Extended detection and response platform",
		Events: []Event{
			riskEvent("c2-communication", "C2 Communication Detected", RiskHigh,
				"Command and control communication detected",
				"Command and control (C2) communication detected",
				""),
			riskEvent("lateral-movement", "Lateral Movement", RiskHigh,
				"Lateral movement behavior detected",
				"Lateral movement detected in network by Cortex XDR",
				""),
			riskEvent("ransomware-behavior", "Ransomware Behavior", RiskHigh,
				"Ransomware-like behavior detected",
				"Ransomware behavior detected: mass file encryption attempt",
				"Files on one of your devices are being encrypted by suspicious software"),
		},
	},
	{
		ID:            "microsoft",
		Name:          "Microsoft Entra ID Protection",
		DefaultIssuer: "https://sts.windows.net",
		Description:   "Identity risk detection for cloud sign-ins",
		Events: []Event{
			riskEvent("risky-signin", "Risky Sign-In", RiskMedium,
				"Sign-in flagged as risky by Entra ID Protection",
				"Risky sign-in detected by Microsoft Entra ID Protection",
				"An unusual sign-in to your account was detected"),
			riskEvent("impossible-travel", "Impossible Travel", RiskHigh,
				"Sign-ins from geographically distant locations",
				"Impossible travel detected between consecutive sign-ins",
				""),
			riskEvent("leaked-credentials", "Leaked Credentials", RiskHigh,
				"User credentials found in a public leak",
				"User credentials found in leaked credential set",
				"Your password was found in a public data leak"),
		},
	},
	{
		ID:            "proofpoint",
		Name:          "Proofpoint TAP",
		DefaultIssuer: "https://tap-api-v2.proofpoint.com",
		Description:   "Email threat protection",
		Events: []Event{
			riskEvent("phishing-clicked", "Phishing Link Clicked", RiskHigh,
				"User clicked a known phishing link",
				"User clicked a phishing link detected by Proofpoint TAP",
				"You clicked a link in an email that was identified as phishing"),
			riskEvent("malicious-attachment", "Malicious Attachment Delivered", RiskMedium,
				"Malicious attachment delivered to the user",
				"Malicious attachment delivered to user mailbox",
				""),
		},
	},
	{
		ID:            "netskope",
		Name:          "Netskope SSE",
		DefaultIssuer: "https://goskope.com",
		Description:   "Security service edge and cloud DLP",
		Events: []Event{
			riskEvent("data-exfiltration", "Data Exfiltration", RiskHigh,
				"Bulk upload of sensitive data to an unmanaged app",
				"Data exfiltration to unsanctioned cloud storage detected by Netskope",
				"A large upload of company data from your account was detected"),
			riskEvent("risky-app-usage", "Risky App Usage", RiskMedium,
				"Use of a high risk cloud application",
				"Use of a high risk unsanctioned cloud application",
				""),
		},
	},
	{
		ID:            "custom",
		Name:          "Custom",
		DefaultIssuer: "https://my-local-transmitter.com",
		Description:   "Generic SSF events for testing",
		Events: []Event{
			riskEvent("generic-risk", "Generic Risk Event", RiskHigh,
				"Generic high-risk event for testing ITP",
				"External provider reported account compromise",
				""),
			lifecycleEvent("session-revoked", "Session Revoked", RiscSessionRevokedSchema, RiskMedium,
				"User session terminated due to security concern"),
			lifecycleEvent("credential-change-required", "Credential Change Required", RiscCredentialChangeSchema, RiskMedium,
				"User must change credentials"),
			lifecycleEvent("account-disabled", "Account Disabled", RiscAccountDisabledSchema, RiskHigh,
				"User account disabled by the transmitter"),
		},
	},
}

type eventKey struct {
	providerID string
	eventID    string
}

var (
	providerIndex = map[string]*Provider{}
	eventIndex    = map[eventKey]Event{}
)

func init() {
	for i := range providerList {
		p := &providerList[i]
		providerIndex[p.ID] = p
		for _, e := range p.Events {
			eventIndex[eventKey{p.ID, e.ID}] = e
		}
	}
}

func (p Provider) clone() Provider {
	p.Events = append([]Event(nil), p.Events...)
	return p
}

// Providers returns copies of every provider in display order; changes to them do not reach the catalog.
func Providers() []Provider {
	out := make([]Provider, len(providerList))
	for i, p := range providerList {
		out[i] = p.clone()
	}
	return out
}

func Lookup(providerID string) (Provider, bool) {
	p, ok := providerIndex[providerID]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

func LookupEvent(providerID, eventID string) (Event, bool) {
	e, ok := eventIndex[eventKey{providerID, eventID}]
	return e, ok
}

// Resolve is LookupEvent returning a *LookupError on a miss.
func Resolve(providerID, eventID string) (Provider, Event, error) {
	p, ok := Lookup(providerID)
	if !ok {
		return Provider{}, Event{}, &LookupError{ProviderID: providerID}
	}
	e, ok := LookupEvent(providerID, eventID)
	if !ok {
		return p, Event{}, &LookupError{ProviderID: providerID, EventID: eventID}
	}
	return p, e, nil
}
