// Package identity decodes bearer tokens into caller claims.
package identity

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Claim names, in lookup order. Tokens issued by the user pool carry the
// custom: prefix; plain names are accepted for tokens minted elsewhere.
var (
	roleClaims  = []string{"custom:role", "role"}
	ownerClaims = []string{"custom:ownerid", "ownerid", "ownerId"}
)

// Decoder implements types.IdentityDecoder.
//
// Without a secret the token is parsed but its signature is not checked;
// verification is left to the gateway in front of the service. With a secret
// the token must be a valid HMAC-signed JWT.
type Decoder struct {
	secret []byte
	parser *jwt.Parser
}

var _ types.IdentityDecoder = (*Decoder)(nil)

// NewDecoder returns a decoder. An empty secret disables signature checks.
func NewDecoder(secret string) *Decoder {
	return &Decoder{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

// Decode accepts a raw token or an "Authorization" header value.
func (d *Decoder) Decode(token string) (*types.Claims, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, unauthenticated("missing bearer token", nil)
	}

	claims := jwt.MapClaims{}
	if len(d.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, unauthenticated("malformed token", err)
		}
	} else {
		parsed, err := d.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return d.secret, nil
		})
		if err != nil || !parsed.Valid {
			return nil, unauthenticated("invalid or expired token", err)
		}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, unauthenticated("token has no subject", nil)
	}
	return &types.Claims{
		Subject: sub,
		Role:    lookup(claims, roleClaims),
		OwnerID: lookup(claims, ownerClaims),
	}, nil
}

func lookup(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		if v, ok := claims[name]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			default:
				return fmt.Sprint(s)
			}
		}
	}
	return ""
}

func unauthenticated(msg string, cause error) error {
	e := errors.NewError(errors.ErrCodeAuthenticationFailed, msg).WithComponent("identity")
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
