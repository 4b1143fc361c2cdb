package lendguard

import (
	"context"
	"errors"
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
)

const loginOK = `{"success":true,"message":"Login successful","data":{"accessToken":"acc","refreshToken":"ref","user":{"id":3,"role":"ADMIN"}}}`

func TestLoginStoresCredentialAndProfile(t *testing.T) {
	for _, remember := range []bool{true, false} {
		p := newPipeline(t, "/login", respond(http.StatusOK, loginOK))

		res, err := p.client.Login(context.Background(), "admin@union.org", "secret", remember)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		if res.AccessToken != "acc" || res.RefreshToken != "ref" {
			t.Fatalf("Login() = %+v", res)
		}

		cred, ok := p.store.Get()
		if !ok || cred.AccessToken != "acc" || cred.Persistent != remember {
			t.Fatalf("stored credential = %+v, %v", cred, ok)
		}

		profile, ok := p.store.Profile()
		if !ok || string(profile) != `{"id":3,"role":"ADMIN"}` {
			t.Fatalf("Profile() = %s, %v", profile, ok)
		}

		req := p.transport.request(0)
		if req.Method != http.MethodPost || req.Path != LoginPath {
			t.Fatalf("login sent %s %s", req.Method, req.Path)
		}

		var body LoginRequest
		if err = json.Unmarshal(req.Body, &body); err != nil || body.Email != "admin@union.org" || body.Password != "secret" {
			t.Fatalf("login body = %s, %v", req.Body, err)
		}
	}
}

func TestLoginWithoutToken(t *testing.T) {
	p := newPipeline(t, "/login", respond(http.StatusOK, `{"success":true,"message":"ok","data":{}}`))

	if _, err := p.client.Login(context.Background(), "a@b.c", "x", false); err == nil {
		t.Fatal("Login() accepted a response without token")
	}

	if _, ok := p.store.Get(); ok {
		t.Fatal("credential stored from an empty response")
	}
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	p := newPipeline(t, "/loans", respond(http.StatusBadRequest, `{"success":false,"message":"already logged out"}`))
	_ = p.store.Set("acc", "ref", true)
	_ = p.store.SetProfile([]byte(`{"id":1}`))

	err := p.client.Logout(context.Background())
	if err == nil || ClassOf(err) != ValidationOrServerMessage {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, ok := p.store.Get(); ok {
		t.Fatal("credential survived logout")
	}

	if _, ok := p.store.Profile(); ok {
		t.Fatal("profile survived logout")
	}

	if p.transport.request(0).Path != LogoutPath {
		t.Fatalf("logout path = %q", p.transport.request(0).Path)
	}
}

func TestLogoutWithoutSessionSkipsBackend(t *testing.T) {
	p := newPipeline(t, "/loans", respond(http.StatusOK, `{}`))

	if err := p.client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if p.transport.calls() != 0 {
		t.Fatalf("calls = %d, want 0", p.transport.calls())
	}
}

func TestMe(t *testing.T) {
	p := newPipeline(t, "/", respond(http.StatusOK, `{"success":true,"message":"ok","data":{"id":9}}`))

	if _, err := p.client.Me(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Me() without session error = %v", err)
	}

	_ = p.store.Set("acc", "ref", false)

	profile, err := p.client.Me(context.Background())
	if err != nil || string(profile) != `{"id":9}` {
		t.Fatalf("Me() = %s, %v", profile, err)
	}

	if cached, _ := p.store.Profile(); string(cached) != `{"id":9}` {
		t.Fatalf("cached profile = %s", cached)
	}

	if got := p.transport.request(0).Header.Get("Authorization"); got != "Bearer acc" {
		t.Fatalf("Authorization = %q", got)
	}
}
