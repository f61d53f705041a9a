package transmitter

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const EventsPath = "/security/api/v1/security-events"

var hostLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?$`)

/*
SanitizeHost reduces an operator supplied Okta domain to the bare host used for both the audience and the endpoint.
The scheme and trailing slashes are dropped and an admin console host (dev-1-admin.okta.com) is rewritten to the
org host (dev-1.okta.com). A port is kept. Anything that is not a valid host yields *InvalidDomainError.
*/
func SanitizeHost(input string) (string, error) {
	host := strings.TrimSpace(input)
	lower := strings.ToLower(host)
	switch {
	case strings.HasPrefix(lower, "https://"):
		host = host[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		host = host[len("http://"):]
	}
	host = strings.TrimRight(host, "/")
	if host == "" {
		return "", &InvalidDomainError{Input: input, Err: errors.New("empty host")}
	}

	parsed, err := url.Parse("https://" + host)
	if err != nil {
		return "", &InvalidDomainError{Input: input, Err: err}
	}
	if parsed.User != nil || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", &InvalidDomainError{Input: input, Err: errors.New("unexpected userinfo, query or fragment")}
	}
	host = parsed.Host

	name, port := host, ""
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.HasSuffix(host, "]") {
		name, port = host[:i], host[i+1:]
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return "", &InvalidDomainError{Input: input, Err: errors.New("invalid port")}
		}
	}
	if err = validateHostname(name); err != nil {
		return "", &InvalidDomainError{Input: input, Err: err}
	}

	if first, rest, found := strings.Cut(name, "."); found && strings.HasSuffix(first, "-admin") {
		name = strings.TrimSuffix(first, "-admin") + "." + rest
	}
	if port != "" {
		return name + ":" + port, nil
	}
	return name, nil
}

func validateHostname(name string) error {
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		if net.ParseIP(name[1:len(name)-1]) == nil {
			return errors.New("invalid IPv6 literal")
		}
		return nil
	}
	if net.ParseIP(name) != nil {
		return nil
	}
	if name == "" || len(name) > 253 {
		return errors.New("invalid host name length")
	}
	for _, label := range strings.Split(name, ".") {
		if !hostLabel.MatchString(label) {
			return errors.New("invalid host name")
		}
	}
	return nil
}

// Endpoint is the SSF push endpoint of an Okta org.
func Endpoint(host string) string {
	return "https://" + host + EventsPath
}

// Audience is the aud claim value for an Okta org.
func Audience(host string) string {
	return "https://" + host
}
