package transmitter

import (
	"fmt"
)

// InvalidDomainError reports an Okta domain that does not reduce to a usable host.
type InvalidDomainError struct {
	Input string
	Err   error
}

func (e *InvalidDomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid Okta domain %q: %s", e.Input, e.Err.Error())
	}
	return fmt.Sprintf("invalid Okta domain %q", e.Input)
}

func (e *InvalidDomainError) Unwrap() error {
	return e.Err
}

// TransportError is a failure to get any HTTP response (DNS, connect, TLS, timeout, cancel).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error posting to %s: %s", e.URL, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is a non-2xx answer from the receiver.
type RejectedError struct {
	Status      int
	Code        string
	Description string
	Hint        string
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("receiver rejected SET (HTTP %d)", e.Status)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}
