/*
Package tokens handles unsubscribe tokens. Two schemes are live:

  - Opaque tokens are random UUIDs stored on the subscriber row and only
    resolvable by lookup. New links always use these.
  - Legacy tokens are base64-encoded {"email", "category"} JSON. Links with this
    format went out in older emails and must keep working.
*/
package tokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Kind int

const (
	KindOpaque Kind = iota + 1
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindLegacy:
		return "legacy"
	}
	return "unknown"
}

var ErrMalformed = errors.New("malformed legacy token")

func NewOpaque() string {
	return uuid.New().String()
}

type legacyPayload struct {
	Email    string `json:"email"`
	Category string `json:"category"`
}

// EncodeLegacy produces an unpadded base64url legacy token.
func EncodeLegacy(email, category string) string {
	payload, _ := json.Marshal(legacyPayload{Email: email, Category: category})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeLegacy accepts standard or URL-safe base64, with or without padding.
func DecodeLegacy(token string) (email, category string, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", ErrMalformed
	}

	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(token, "="))
	raw, err := base64.RawStdEncoding.DecodeString(normalized)
	if err != nil {
		return "", "", ErrMalformed
	}

	var payload legacyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", ErrMalformed
	}
	if payload.Email == "" || payload.Category == "" {
		return "", "", ErrMalformed
	}
	return payload.Email, payload.Category, nil
}

// LooksOpaque reports whether token has the shape of a token from NewOpaque.
func LooksOpaque(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}
