package transporthttp

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceskypane/epicgo/auth"
)

type fakeProvider struct {
	mu           sync.Mutex
	token        string
	refreshed    string
	refreshErr   error
	refreshCalls int
}

func (p *fakeProvider) AccessToken(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == "" {
		return "", auth.ErrNoToken
	}

	return p.token, nil
}

func (p *fakeProvider) Refresh(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshCalls++
	if p.refreshErr != nil {
		return p.refreshErr
	}

	p.token = p.refreshed

	return nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.refreshCalls
}

func TestClientCredentialsStampsIdentityHeaders(t *testing.T) {
	var requests []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Header.Clone())
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &ClientCredentials{
		ClientID:            "cid",
		ClientSecret:        "sec",
		DeviceID:            "device1",
		FirstRequestHeaders: map[string]string{"X-Login-Flow": "start"},
	}, Config{UserAgent: "epicgo/1.0"})

	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil))
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil))

	require.Len(t, requests, 2)

	wantAuth := "basic " + base64.StdEncoding.EncodeToString([]byte("cid:sec"))
	for _, h := range requests {
		assert.Equal(t, wantAuth, h.Get("Authorization"))
		assert.Equal(t, "device1", h.Get(DeviceIDHeader))
		assert.Equal(t, "epicgo/1.0", h.Get("User-Agent"))
	}

	assert.Equal(t, "start", requests[0].Get("X-Login-Flow"), "one-time header on first request")
	assert.Empty(t, requests[1].Get("X-Login-Flow"), "one-time header must not repeat")
}

func TestBearerAuthAttachesToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	provider := &fakeProvider{token: "tok1"}
	client := NewClient(srv.Client(), &BearerAuth{Provider: provider}, Config{})

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &out))

	assert.Equal(t, "bearer tok1", gotAuth)
	assert.Equal(t, 42, out.Value)
	assert.Zero(t, provider.calls())
}

func TestBearerAuthRefreshesOnceOnInvalidToken(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		tokens = append(tokens, token)

		if token != "bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":"errors.com.epicgames.common.oauth.invalid_token"}`))
			return
		}

		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	provider := &fakeProvider{token: "tok1", refreshed: "tok2"}
	client := NewClient(srv.Client(), &BearerAuth{Provider: provider}, Config{})

	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil))

	assert.Equal(t, []string{"bearer tok1", "bearer tok2"}, tokens)
	assert.Equal(t, 1, provider.calls())
}

func TestBearerAuthReplaysAtMostOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorCode":"errors.com.epicgames.common.oauth.invalid_token"}`))
	}))
	defer srv.Close()

	provider := &fakeProvider{token: "tok1", refreshed: "tok2"}
	client := NewClient(srv.Client(), &BearerAuth{Provider: provider}, Config{})

	err := client.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var svcErr *auth.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, provider.calls())
}

func TestBearerAuthRefreshFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorCode":"errors.com.epicgames.common.oauth.invalid_token"}`))
	}))
	defer srv.Close()

	provider := &fakeProvider{token: "tok1", refreshErr: errors.New("refresh grant rejected")}
	client := NewClient(srv.Client(), &BearerAuth{Provider: provider}, Config{})

	err := client.GetJSON(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, 1, provider.calls())
}

func TestNonSuccessStatusDecodesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"errors.com.epicgames.common.not_found","errorMessage":"nope"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &ClientCredentials{ClientID: "cid", ClientSecret: "sec"}, Config{})

	err := client.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var svcErr *auth.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "errors.com.epicgames.common.not_found", svcErr.Code)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)
}

func TestPostFormEncodesBody(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotBody = r.Form.Encode()
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, Config{})

	form := map[string][]string{"grant_type": {"password"}, "username": {"u@example.com"}}
	require.NoError(t, client.PostForm(context.Background(), srv.URL, form, nil))

	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Contains(t, gotBody, "grant_type=password")
	assert.Contains(t, gotBody, "username=u%40example.com")
}
