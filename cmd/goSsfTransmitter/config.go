package main

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/structs"
	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"github.com/i2-open/goSsfTransmitter/internal/store"
	"github.com/i2-open/goSsfTransmitter/internal/transmitter"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
)

// ConfigData is the operator's saved transmitter profile. Fields tagged ssf:"required" must be set before a send can succeed.
type ConfigData struct {
	OktaDomain   string            `json:"oktaDomain" ssf:"required" label:"domain"`
	Issuer       string            `json:"issuer" ssf:"required" label:"issuer"`
	SubjectEmail string            `json:"subjectEmail" ssf:"required" label:"email"`
	ProviderId   string            `json:"providerId,omitempty" label:"provider"`
	Risk         catalog.RiskLevel `json:"riskLevel,omitempty" label:"risk"`
	KeyPem       string            `json:"privateKeyPem,omitempty" ssf:"required" label:"key"`
	Kid          string            `json:"kid,omitempty" ssf:"required" label:"kid"`
	JwksUrl      string            `json:"jwksUrl,omitempty" label:"jwks"`

	key *rsa.PrivateKey // parsed KeyPem, not persisted
}

// Missing lists the labels of required fields that are still empty.
func (c *ConfigData) Missing() []string {
	var missing []string
	for _, field := range structs.Fields(c) {
		if !field.IsExported() || field.Tag("ssf") != "required" {
			continue
		}
		if field.IsZero() {
			missing = append(missing, field.Tag("label"))
		}
	}
	return missing
}

// GetKey parses and caches the signing key.
func (c *ConfigData) GetKey() (*rsa.PrivateKey, error) {
	if c.key != nil {
		return c.key, nil
	}
	if c.KeyPem == "" {
		return nil, errors.New("no signing key configured; use 'set key <file>' or 'keys generate'")
	}
	key, err := goSet.ParsePrivateKeyPem([]byte(c.KeyPem))
	if err != nil {
		return nil, err
	}
	c.key = key
	return key, nil
}

func (c *ConfigData) SetKeyPem(pemBytes []byte) error {
	key, err := goSet.ParsePrivateKeyPem(pemBytes)
	if err != nil {
		return err
	}
	c.KeyPem = string(pemBytes)
	c.key = key
	return nil
}

func (c *ConfigData) Profile() transmitter.Profile {
	return transmitter.Profile{
		OktaDomain:    c.OktaDomain,
		Issuer:        c.Issuer,
		SubjectEmail:  c.SubjectEmail,
		Kid:           c.Kid,
		PrivateKeyPem: []byte(c.KeyPem),
	}
}

func (c *ConfigData) String() string {
	keyState := "not set"
	if c.KeyPem != "" {
		keyState = "loaded"
		if _, err := c.GetKey(); err != nil {
			keyState = "invalid: " + err.Error()
		}
	}
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Okta domain:   %s\n", c.OktaDomain)
	if host, err := transmitter.SanitizeHost(c.OktaDomain); err == nil {
		_, _ = fmt.Fprintf(&b, "  endpoint:    %s\n", transmitter.Endpoint(host))
	}
	_, _ = fmt.Fprintf(&b, "Issuer:        %s\n", c.Issuer)
	_, _ = fmt.Fprintf(&b, "Subject email: %s\n", c.SubjectEmail)
	_, _ = fmt.Fprintf(&b, "Provider:      %s\n", c.ProviderId)
	_, _ = fmt.Fprintf(&b, "Risk level:    %s\n", c.Risk)
	_, _ = fmt.Fprintf(&b, "Signing key:   %s\n", keyState)
	_, _ = fmt.Fprintf(&b, "Key id (kid):  %s\n", c.Kid)
	_, _ = fmt.Fprintf(&b, "JWKS URL:      %s\n", c.JwksUrl)
	if missing := c.Missing(); len(missing) > 0 {
		_, _ = fmt.Fprintf(&b, "Missing:       %s\n", strings.Join(missing, ", "))
	}
	return b.String()
}

// Load reads the saved profile. When none exists it is seeded from the SSF_ environment.
func (c *ConfigData) Load(g *Globals) error {
	s := g.Session
	found, err := s.Store.Get(store.KeyConfig, c)
	if err != nil {
		return err
	}
	if !found {
		env := s.Env
		c.OktaDomain = env.OktaDomain
		c.Issuer = env.Issuer
		c.SubjectEmail = env.SubjectEmail
		c.Kid = env.KeyId
		c.JwksUrl = env.JwksUrl
		if env.KeyFile != "" {
			pemBytes, err := os.ReadFile(env.KeyFile)
			if err != nil {
				return err
			}
			if err = c.SetKeyPem(pemBytes); err != nil {
				return err
			}
		}
	}
	c.key = nil
	s.Pipeline.SetProfile(c.Profile())
	return nil
}

// Save persists the profile and pushes it to the pipeline.
func (c *ConfigData) Save(g *Globals) error {
	g.Session.Pipeline.SetProfile(c.Profile())
	return g.Session.Store.Put(store.KeyConfig, c)
}
