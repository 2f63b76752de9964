package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func writePublicKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0600))
	return path
}

func TestStatic(t *testing.T) {
	id, ok := Static("1").TeamID()
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	_, ok = Static("").TeamID()
	assert.False(t, ok)
}

func TestNew_Static(t *testing.T) {
	id, err := New(Config{TeamID: "5"})
	require.NoError(t, err)
	team, ok := id.TeamID()
	assert.True(t, ok)
	assert.Equal(t, "5", team)
}

func TestParseToken_Unverified(t *testing.T) {
	key := newKey(t)
	token := sign(t, key, jwt.MapClaims{
		"team_id":  float64(12),
		"username": "alice",
		"sub":      "u-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	id, err := ParseToken(token, "", nil)
	require.NoError(t, err)
	team, ok := id.TeamID()
	assert.True(t, ok)
	assert.Equal(t, "12", team)
	assert.Equal(t, "alice", id.Claims().Username)
	assert.Equal(t, "u-1", id.Claims().Subject)
}

func TestParseToken_CustomClaim(t *testing.T) {
	token := sign(t, newKey(t), jwt.MapClaims{"current_team": "acme"})

	id, err := ParseToken(token, "current_team", nil)
	require.NoError(t, err)
	team, ok := id.TeamID()
	assert.True(t, ok)
	assert.Equal(t, "acme", team)
}

func TestParseToken_NoTeam(t *testing.T) {
	token := sign(t, newKey(t), jwt.MapClaims{"username": "bob"})

	_, err := ParseToken(token, "team_id", nil)
	assert.ErrorIs(t, err, ErrNoTeam)
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseToken("not.a.jwt", "team_id", nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Verified(t *testing.T) {
	key := newKey(t)
	token := sign(t, key, jwt.MapClaims{"team_id": "1"})

	id, err := ParseToken(token, "team_id", &key.PublicKey)
	require.NoError(t, err)
	team, _ := id.TeamID()
	assert.Equal(t, "1", team)

	_, err = ParseToken(token, "team_id", &newKey(t).PublicKey)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsHMAC(t *testing.T) {
	key := newKey(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"team_id": "1"}).SignedString([]byte("shared"))
	require.NoError(t, err)

	_, err = ParseToken(token, "team_id", &key.PublicKey)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Expiry(t *testing.T) {
	token := sign(t, newKey(t), jwt.MapClaims{
		"team_id": "1",
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	id, err := ParseToken(token, "team_id", nil)
	require.NoError(t, err)

	_, ok := id.TeamID()
	assert.True(t, ok)

	id.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok = id.TeamID()
	assert.False(t, ok)
}

func TestNew_TokenWithKeyFile(t *testing.T) {
	key := newKey(t)
	cfg := DefaultConfig()
	cfg.Token = sign(t, key, jwt.MapClaims{"team_id": "9"})
	cfg.PublicKeyFile = writePublicKey(t, key)

	id, err := New(cfg)
	require.NoError(t, err)
	team, ok := id.TeamID()
	assert.True(t, ok)
	assert.Equal(t, "9", team)
}

func TestLoadPublicKey_Errors(t *testing.T) {
	_, err := LoadPublicKey(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
	_, err = LoadPublicKey(path)
	assert.Error(t, err)

	_, err = New(Config{Token: "x", PublicKeyFile: path})
	assert.Error(t, err)
}
