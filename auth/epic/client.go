package epic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ceskypane/epicgo/auth"
	transporthttp "github.com/ceskypane/epicgo/transport/http"
)

// Client speaks the account service's token-grant protocol. Field names on
// the form bodies are an external contract and must not change. Grants are
// never retried; a failed exchange surfaces to the caller as-is.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}

	if cfg.HTTP == nil {
		return nil, fmt.Errorf("auth/epic: http pipeline is required")
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{cfg: cfg}, nil
}

func (c *Client) TokenByPassword(ctx context.Context, email, password string) (auth.TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "password")
	values.Set("username", email)
	values.Set("password", password)
	values.Set("includePerms", "true")
	values.Set("token_type", "eg1")

	return c.tokenGrant(ctx, values)
}

func (c *Client) TokenByOTP(ctx context.Context, code, challenge string) (auth.TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "otp")
	values.Set("otp", code)
	values.Set("challenge", challenge)
	values.Set("includePerms", "true")
	values.Set("token_type", "eg1")

	return c.tokenGrant(ctx, values)
}

func (c *Client) TokenByRefresh(ctx context.Context, refreshToken string) (auth.TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	values.Set("includePerms", "true")
	values.Set("token_type", "eg1")

	return c.tokenGrant(ctx, values)
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        any    `json:"expires_in"`
	ExpiresAt        string `json:"expires_at"`
	RefreshExpiresIn any    `json:"refresh_expires"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
	AccountID        string `json:"account_id"`
	InAppID          string `json:"in_app_id"`
	ClientID         string `json:"client_id"`
	DisplayName      string `json:"displayName"`
}

func (c *Client) tokenGrant(ctx context.Context, values url.Values) (auth.TokenSet, error) {
	resp, err := c.cfg.HTTP.Request(ctx, transporthttp.Request{
		Method:  http.MethodPost,
		URL:     c.cfg.TokenURL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte(values.Encode()),
	})
	if err != nil {
		return auth.TokenSet{}, err
	}

	return parseTokenResponse(resp.Body, c.cfg.Now().UTC())
}

func parseTokenResponse(raw []byte, now time.Time) (auth.TokenSet, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return auth.TokenSet{}, err
	}

	tokens := auth.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		AccountID:    tr.AccountID,
		InAppID:      tr.InAppID,
		ClientID:     tr.ClientID,
		DisplayName:  tr.DisplayName,
	}

	expiresAt, err := parseExpiry(tr.ExpiresAt, tr.ExpiresIn, now)
	if err != nil {
		return auth.TokenSet{}, err
	}
	tokens.ExpiresAt = expiresAt

	if tr.RefreshExpiresAt != "" || tr.RefreshExpiresIn != nil {
		refreshExpiresAt, parseErr := parseExpiry(tr.RefreshExpiresAt, tr.RefreshExpiresIn, now)
		if parseErr == nil {
			tokens.RefreshExpiresAt = refreshExpiresAt
		}
	}

	if tokens.AccessToken == "" {
		return auth.TokenSet{}, fmt.Errorf("auth/epic: missing access token in oauth response")
	}

	if tokens.ExpiresAt.IsZero() {
		return auth.TokenSet{}, fmt.Errorf("auth/epic: missing expires_at in oauth response")
	}

	return tokens, nil
}

func parseExpiry(expiresAt string, expiresIn any, now time.Time) (time.Time, error) {
	if expiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, expiresAt)
		if err == nil {
			return parsed.UTC(), nil
		}
	}

	seconds, err := parseSeconds(expiresIn)
	if err != nil {
		return time.Time{}, err
	}

	return now.Add(time.Duration(seconds) * time.Second).UTC(), nil
}

func parseSeconds(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("auth/epic: expiry is missing")
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		if n == "" {
			return 0, fmt.Errorf("auth/epic: expiry is empty")
		}

		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, err
		}

		return parsed, nil
	default:
		return 0, fmt.Errorf("auth/epic: unsupported expiry type %T", v)
	}
}

// KillSessionsURL builds the cleanup endpoint for the given kill type.
func KillSessionsURL(base, killType string) string {
	if base == "" {
		base = DefaultSessionsURL
	}

	return base + "?killType=" + url.QueryEscape(killType)
}

// KillTokenURL builds the endpoint that invalidates a single session token.
func KillTokenURL(base, accessToken string) string {
	if base == "" {
		base = DefaultSessionsURL
	}

	return base + "/" + url.PathEscape(accessToken)
}

// AccountInfoURL builds the public-account-info endpoint for an account id.
func AccountInfoURL(base, accountID string) string {
	if base == "" {
		base = DefaultAccountInfoURL
	}

	return base + "/" + url.PathEscape(accountID)
}
