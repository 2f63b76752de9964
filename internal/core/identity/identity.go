// Package identity supplies the team a session is scoped to, either from
// static configuration or from the claims of the caller's session token.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoTeam       = errors.New("token carries no team")
)

// Config selects the identity source.
type Config struct {
	TeamID string `yaml:"team_id"`
	Token  string `yaml:"token"`

	// PublicKeyFile verifies the token signature when set.
	PublicKeyFile string `yaml:"public_key_file"`
	TeamClaim     string `yaml:"team_claim"`
}

func DefaultConfig() Config {
	return Config{TeamClaim: "team_id"}
}

// Static is a fixed team id. The empty string has no team.
type Static string

func (s Static) TeamID() (string, bool) {
	return string(s), s != ""
}

// Claims are the token claims the client cares about.
type Claims struct {
	TeamID   string
	Username string
	jwt.RegisteredClaims
}

// Token is an identity backed by a parsed session token. It loses its team
// once the token expires.
type Token struct {
	claims Claims
	now    func() time.Time
}

var _ realtime.Identity = (*Token)(nil)

func (t *Token) TeamID() (string, bool) {
	if t.claims.TeamID == "" {
		return "", false
	}
	if exp := t.claims.ExpiresAt; exp != nil && !t.now().Before(exp.Time) {
		return "", false
	}
	return t.claims.TeamID, true
}

func (t *Token) Claims() Claims {
	return t.claims
}

// New builds the identity described by cfg.
func New(cfg Config) (realtime.Identity, error) {
	if cfg.Token == "" {
		return Static(cfg.TeamID), nil
	}

	var key *rsa.PublicKey
	if cfg.PublicKeyFile != "" {
		k, err := LoadPublicKey(cfg.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		key = k
	}
	return ParseToken(cfg.Token, cfg.TeamClaim, key)
}

// ParseToken reads the team from a JWT. With a nil key the signature is not
// verified; the server remains the authority on what the token grants.
func ParseToken(tokenString, teamClaim string, key *rsa.PublicKey) (*Token, error) {
	if teamClaim == "" {
		teamClaim = DefaultConfig().TeamClaim
	}

	claims := jwt.MapClaims{}
	var err error
	if key == nil {
		_, _, err = jwt.NewParser().ParseUnverified(tokenString, claims)
	} else {
		_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	team, err := claimString(claims, teamClaim)
	if err != nil {
		return nil, err
	}
	username, _ := claims["username"].(string)
	sub, _ := claims.GetSubject()
	exp, _ := claims.GetExpirationTime()

	return &Token{
		claims: Claims{
			TeamID:   team,
			Username: username,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				ExpiresAt: exp,
			},
		},
		now: time.Now,
	}, nil
}

func claimString(claims jwt.MapClaims, name string) (string, error) {
	switch v := claims[name].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", fmt.Errorf("%w: claim %q", ErrNoTeam, name)
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %s: %w", path, err)
	}
	return key, nil
}
