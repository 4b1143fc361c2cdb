package lendguard

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---------------------------------------------------------------------------
// Credential switching
// ---------------------------------------------------------------------------

func TestCredentialStoreSwitchesNamespace(t *testing.T) {
	store, persistent, ephemeral := newTestStore()

	if err := store.Set("a1", "r1", true); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Get()
	if !ok || got != (Credential{AccessToken: "a1", RefreshToken: "r1", Persistent: true}) {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	if ephemeral.len() != 0 {
		t.Fatalf("ephemeral namespace holds %v", ephemeral.m)
	}

	if v, _ := persistent.Get(KeyRememberMe); v != "true" {
		t.Fatalf("remember_me = %q, want true", v)
	}

	if err := store.Set("a2", "r2", false); err != nil {
		t.Fatal(err)
	}

	got, ok = store.Get()
	if !ok || got != (Credential{AccessToken: "a2", RefreshToken: "r2"}) {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	if persistent.len() != 0 {
		t.Fatalf("persistent namespace holds %v", persistent.m)
	}
}

func TestCredentialStoreSetIsIdempotent(t *testing.T) {
	store, persistent, _ := newTestStore()

	for range 3 {
		if err := store.Set("a", "", true); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := persistent.Get(KeyRefreshToken); ok {
		t.Fatal("empty refresh token was stored")
	}

	if got, _ := store.Get(); got.AccessToken != "a" {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestCredentialStorePersistentWins(t *testing.T) {
	store, persistent, ephemeral := newTestStore()

	_ = ephemeral.Set(KeyAccessToken, "session")
	_ = persistent.Set(KeyAccessToken, "remembered")

	got, _ := store.Get()
	if got.AccessToken != "remembered" || !got.Persistent {
		t.Fatalf("Get() = %+v, want persistent credential", got)
	}
}

func TestCredentialStoreClear(t *testing.T) {
	store, persistent, ephemeral := newTestStore()

	_ = ephemeral.Set(KeyAccessToken, "session")
	_ = ephemeral.Set(KeyUser, "{}")
	_ = persistent.Set(KeyAccessToken, "remembered")
	_ = persistent.Set(KeyRememberMe, "true")

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}

	if persistent.len() != 0 || ephemeral.len() != 0 {
		t.Fatalf("leftovers: %v %v", persistent.m, ephemeral.m)
	}

	if _, ok := store.Get(); ok {
		t.Fatal("Get() after Clear reported a credential")
	}
}

type failingBackend struct{ *mapBackend }

func (failingBackend) Delete(string) error { return errors.New("disk full") }

func TestCredentialStoreSetReportsBackendErrors(t *testing.T) {
	store := NewCredentialStore(newMapBackend(), failingBackend{newMapBackend()})

	if err := store.Set("a", "r", true); err == nil {
		t.Fatal("Set() = nil, want error from the failing namespace")
	}
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func TestCredentialStoreProfileFollowsActiveNamespace(t *testing.T) {
	store, persistent, ephemeral := newTestStore()

	_ = store.Set("a", "r", true)

	if err := store.SetProfile([]byte(`{"id":"u1"}`)); err != nil {
		t.Fatal(err)
	}

	if _, ok := persistent.Get(KeyUser); !ok {
		t.Fatal("profile not stored next to the persistent credential")
	}

	if _, ok := ephemeral.Get(KeyUser); ok {
		t.Fatal("profile leaked to the ephemeral namespace")
	}

	got, ok := store.Profile()
	if !ok || string(got) != `{"id":"u1"}` {
		t.Fatalf("Profile() = %s, %v", got, ok)
	}

	if err := store.ClearProfile(); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Profile(); ok {
		t.Fatal("Profile() after ClearProfile reported a profile")
	}
}

// ---------------------------------------------------------------------------
// Claims
// ---------------------------------------------------------------------------

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	if err != nil {
		t.Fatal(err)
	}

	return s
}

func TestClaimsDecodeWithoutVerification(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store, _, _ := newTestStore()

	_ = store.Set(signToken(t, jwt.MapClaims{
		"userId": "u-42",
		"email":  "officer@example.com",
		"role":   "BRANCH_MANAGER",
		"exp":    exp.Unix(),
	}), "", false)

	claims, err := store.Claims()
	if err != nil {
		t.Fatalf("Claims() error: %v", err)
	}

	if claims.Subject != "u-42" || claims.Email != "officer@example.com" || !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("claims = %+v", claims)
	}

	if role, ok := store.Role(); !ok || role != "BRANCH_MANAGER" {
		t.Fatalf("Role() = %q, %v", role, ok)
	}

	if id, ok := store.UserID(); !ok || id != "u-42" {
		t.Fatalf("UserID() = %q, %v", id, ok)
	}

	if !store.Authenticated(exp.Add(-time.Hour)) || store.Authenticated(exp) {
		t.Fatal("Authenticated() does not follow exp")
	}
}

func TestClaimsPreferSubject(t *testing.T) {
	claims, err := DecodeClaims(signToken(t, jwt.MapClaims{"sub": "s-1", "userId": "u-1"}))
	if err != nil {
		t.Fatal(err)
	}

	if claims.Subject != "s-1" {
		t.Fatalf("Subject = %q, want s-1", claims.Subject)
	}

	if !claims.Expired(time.Now()) {
		t.Fatal("token without exp must count as expired")
	}
}

func TestClaimsErrors(t *testing.T) {
	store, _, _ := newTestStore()

	if _, err := store.Claims(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Claims() error = %v, want ErrNotAuthenticated", err)
	}

	if store.Authenticated(time.Now()) {
		t.Fatal("Authenticated() = true without credential")
	}

	_ = store.Set("not-a-jwt", "", false)

	if _, err := store.Claims(); err == nil {
		t.Fatal("Claims() = nil error for malformed token")
	}
}
