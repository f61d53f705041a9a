package goSet

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const SetTokenType = "secevent+jwt"

var ErrTokenType = errors.New("token type is not `secevent+jwt`")

type EmailIdentifier struct {
	Email string `json:"email,omitempty"`
}

type OpaqueIdentifier struct {
	Id string `json:"id,omitempty"`
}

// SubjectIdentifier follows the draft-ietf-secevent-subject-identifiers "format" form.
type SubjectIdentifier struct {
	Format string `json:"format,omitempty"`
	EmailIdentifier
	OpaqueIdentifier
}

func NewEmailSubjectIdentifier(email string) *SubjectIdentifier {
	return &SubjectIdentifier{
		Format:          "email",
		EmailIdentifier: EmailIdentifier{Email: email},
	}
}

// SecurityEventToken is the claim set of a SET. Audience is a single receiver so it marshals as a string.
type SecurityEventToken struct {
	jwt.RegisteredClaims

	Events map[string]interface{} `json:"events"`
}

/*
CreateSet returns a SecurityEventToken with a fresh jti and an issued-at of now (whole seconds). The subject
is expected to be carried inside each event payload.
*/
func CreateSet(issuer string, audience string) SecurityEventToken {
	return SecurityEventToken{
		Events: make(map[string]interface{}),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       GenerateJti(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   issuer,
			Audience: jwt.ClaimStrings{audience},
		},
	}
}

// MarshalJSON writes a single audience as a plain string rather than jwt's default one element array.
func (set SecurityEventToken) MarshalJSON() ([]byte, error) {
	type claims SecurityEventToken
	out := struct {
		claims
		Audience interface{} `json:"aud,omitempty"`
	}{claims: claims(set)}
	switch len(set.Audience) {
	case 0:
	case 1:
		out.Audience = set.Audience[0]
	default:
		out.Audience = []string(set.Audience)
	}
	return json.Marshal(out)
}

func (set *SecurityEventToken) String() string {
	jsonByte, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return ""
	}
	return string(jsonByte)
}

func (set *SecurityEventToken) JsonBytes() []byte {
	var jsonBuf bytes.Buffer
	_ = json.NewEncoder(&jsonBuf).Encode(set)
	return jsonBuf.Bytes()
}

// Claims returns the token as a generic JSON object, the form kept in transmission records.
func (set *SecurityEventToken) Claims() map[string]interface{} {
	claims := map[string]interface{}{}
	_ = json.Unmarshal(set.JsonBytes(), &claims)
	return claims
}

func (set *SecurityEventToken) AddEventPayload(eventUri string, eventClaims map[string]interface{}) {
	set.Events[eventUri] = eventClaims
}

// AddEvents copies every schema entry of an events fragment into the token.
func (set *SecurityEventToken) AddEvents(fragment map[string]interface{}) {
	for uri, payload := range fragment {
		set.Events[uri] = payload
	}
}

func (set *SecurityEventToken) GetEventIds() []string {
	if len(set.Events) == 0 {
		return []string{}
	}

	var keys []string
	for key := range set.Events {
		keys = append(keys, key)
	}
	return keys
}

func (set *SecurityEventToken) JWT() *jwt.Token {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, set)
	token.Header["typ"] = SetTokenType
	return token
}

// JWS signs the token. A nil signingMethod defaults to RS256.
func (set *SecurityEventToken) JWS(signingMethod jwt.SigningMethod, key *rsa.PrivateKey, kid string) (string, error) {
	if signingMethod == nil {
		signingMethod = jwt.SigningMethodRS256
	}
	if key == nil {
		return "", &SigningError{Err: errors.New("no signing key provided")}
	}
	token := jwt.NewWithClaims(signingMethod, set)
	token.Header["typ"] = SetTokenType
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return signed, nil
}

func Parse(tokenString string, issuerPublicJwks *keyfunc.JWKS) (*SecurityEventToken, error) {
	if issuerPublicJwks == nil {
		return nil, errors.New("no issuer JWKS configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &SecurityEventToken{}, issuerPublicJwks.Keyfunc)
	if err != nil {
		return nil, err
	}
	if token.Header["typ"] != SetTokenType {
		return nil, ErrTokenType
	}

	if claims, ok := token.Claims.(*SecurityEventToken); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("token claims are not a security event token")
}

// GenerateJti returns a random UUIDv4 string.
func GenerateJti() string {
	return uuid.NewString()
}
