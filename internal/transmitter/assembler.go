package transmitter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
)

const PreviewJti = "<generated-uuid>"

// Assemble wraps an events fragment into a SET for the org at host. host must already be sanitized.
func Assemble(issuer string, host string, eventsFragment map[string]interface{}) *goSet.SecurityEventToken {
	set := goSet.CreateSet(issuer, Audience(host))
	set.AddEvents(eventsFragment)
	return &set
}

// Preview renders the claim set that would be sent, with a placeholder jti.
func Preview(set *goSet.SecurityEventToken) string {
	claims := set.Claims()
	claims["jti"] = PreviewJti
	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(claims); err != nil {
		return ""
	}
	return strings.TrimSuffix(out.String(), "\n")
}
