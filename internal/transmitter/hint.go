package transmitter

import (
	"net/http"
	"strings"
)

const (
	HintIssuer         = "Verify the Issuer URL matches the issuer configured on the Okta security events provider stream."
	HintJwks           = "JWKS verification failed: host the correct public key (with a matching kid) at the configured JWKS URL."
	HintAudience       = "Audience mismatch: check the Okta domain; the -admin suffix and trailing slashes must be removed."
	HintStreamConfig   = "Verify the stream configuration in Okta (issuer, JWKS URL and event types)."
	HintAuthentication = "Authentication failed: check the signing key and the security events provider configuration."
)

// ClassifyHint returns advice for a rejected transmission. The first matching rule wins; "" when none match.
func ClassifyHint(status int, code, description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.EqualFold(code, "invalid_request") || strings.Contains(desc, "issuer"):
		return HintIssuer
	case strings.Contains(desc, "jwks") || strings.Contains(desc, "key") || strings.Contains(desc, "signature"):
		return HintJwks
	case strings.Contains(desc, "audience") || strings.Contains(desc, "aud"):
		return HintAudience
	case status == http.StatusBadRequest:
		return HintStreamConfig
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return HintAuthentication
	}
	return ""
}
