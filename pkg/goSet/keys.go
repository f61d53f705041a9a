package goSet

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const DefaultKeyBits = 2048

// SigningError reports unusable key material or a signer failure. No network call is made after one.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed: %s", e.Err.Error())
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// ParsePrivateKeyPem decodes a PKCS8 "PRIVATE KEY" PEM block holding an RSA key.
func ParsePrivateKeyPem(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &SigningError{Err: errors.New("private key is not PEM encoded")}
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &SigningError{Err: fmt.Errorf("unsupported key type %T, RS256 requires RSA", parsed)}
	}
	return key, nil
}

// Sign serializes the claims as a compact RS256 JWS using the PEM encoded key.
func Sign(set *SecurityEventToken, privateKeyPem []byte, kid string) (string, error) {
	key, err := ParsePrivateKeyPem(privateKeyPem)
	if err != nil {
		return "", err
	}
	return set.JWS(jwt.SigningMethodRS256, key, kid)
}

func EncodePrivateKeyPem(key *rsa.PrivateKey) ([]byte, error) {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyBytes,
	}), nil
}

// IssuerKey is a freshly generated signing key with its kid and PEM form.
type IssuerKey struct {
	Kid        string
	PrivateKey *rsa.PrivateKey
	Pem        []byte
}

func GenerateIssuerKey() (*IssuerKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, DefaultKeyBits)
	if err != nil {
		return nil, err
	}
	pemBytes, err := EncodePrivateKeyPem(privateKey)
	if err != nil {
		return nil, err
	}
	return &IssuerKey{
		Kid:        uuid.NewString(),
		PrivateKey: privateKey,
		Pem:        pemBytes,
	}, nil
}

// PublicJwks returns the {"keys":[...]} document for the public half of key, tagged use=sig alg=RS256.
func PublicJwks(ctx context.Context, key *rsa.PrivateKey, kid string) (json.RawMessage, error) {
	jwkStore := jwkset.NewMemoryStorage()
	jwkOptions := jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	}
	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkOptions)
	if err != nil {
		return nil, err
	}
	if err = jwkStore.KeyWrite(ctx, jwk); err != nil {
		return nil, err
	}
	return jwkStore.JSONPublic(ctx)
}

// JwksKids decodes a JWKS document and returns the kid of every key. The bool is false when there is no keys array.
func JwksKids(body []byte) ([]string, bool, error) {
	var doc struct {
		Keys []jwkset.JWKMarshal `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, err
	}
	if doc.Keys == nil {
		return nil, false, nil
	}
	kids := make([]string, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		kids = append(kids, k.KID)
	}
	return kids, true, nil
}
