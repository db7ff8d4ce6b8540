package transporthttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/ceskypane/epicgo/auth"
)

var ErrRefreshFailed = errors.New("transport/http: token refresh failed")

const DeviceIDHeader = "X-Epic-Device-ID"

// Authenticator stamps identity onto an outgoing request. Exactly one
// authenticator is installed per Client; swapping pipelines means swapping
// the Client, not mutating it.
type Authenticator interface {
	Authenticate(ctx context.Context, req *stdhttp.Request) error
}

// TokenProvider supplies a currently valid access token, refreshing behind
// the scenes when the stored one has expired.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// ClientCredentials is the unauthenticated-pipeline identity: the account
// service's own client id/secret as a basic header plus the device
// fingerprint. FirstRequestHeaders are stamped on the first request only,
// matching the service's one-time login flag contract.
type ClientCredentials struct {
	ClientID            string
	ClientSecret        string
	DeviceID            string
	FirstRequestHeaders map[string]string

	sentFirst atomic.Bool
}

func (a *ClientCredentials) Authenticate(_ context.Context, req *stdhttp.Request) error {
	raw := base64.StdEncoding.EncodeToString([]byte(a.ClientID + ":" + a.ClientSecret))
	req.Header.Set("Authorization", "basic "+raw)

	if a.DeviceID != "" {
		req.Header.Set(DeviceIDHeader, a.DeviceID)
	}

	if !a.sentFirst.Swap(true) {
		for k, v := range a.FirstRequestHeaders {
			req.Header.Set(k, v)
		}
	}

	return nil
}

// BearerAuth is the authenticated-pipeline identity.
type BearerAuth struct {
	Provider TokenProvider
}

func (a *BearerAuth) Authenticate(ctx context.Context, req *stdhttp.Request) error {
	if a.Provider == nil {
		return auth.ErrNoToken
	}

	token, err := a.Provider.AccessToken(ctx)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "bearer "+token)

	return nil
}

type Config struct {
	UserAgent string
}

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    stdhttp.Header
	Body       []byte
}

type Client struct {
	httpClient *stdhttp.Client
	authn      Authenticator
	cfg        Config
}

func NewClient(httpClient *stdhttp.Client, authn Authenticator, cfg Config) *Client {
	if httpClient == nil {
		httpClient = stdhttp.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		authn:      authn,
		cfg:        cfg,
	}
}

// Request sends one request through the pipeline. Transport failures are
// returned verbatim; non-2xx responses come back as typed auth errors. When
// the service rejects a bearer token as invalid the pipeline forces exactly
// one refresh and replays the request once; a failed refresh propagates
// without further attempts.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return Response{}, err
	}

	decodeErr := decode(&resp)
	if decodeErr == nil {
		return resp, nil
	}

	provider := c.refreshableProvider()
	if provider == nil || !isTokenRejection(resp.StatusCode, decodeErr) {
		return resp, decodeErr
	}

	if refreshErr := provider.Refresh(ctx); refreshErr != nil {
		return resp, fmt.Errorf("%w: %v", ErrRefreshFailed, refreshErr)
	}

	resp, err = c.roundTrip(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if decodeErr = decode(&resp); decodeErr != nil {
		return resp, decodeErr
	}

	return resp, nil
}

func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.Request(ctx, Request{Method: stdhttp.MethodGet, URL: rawURL})
	if err != nil {
		return err
	}

	return unmarshalBody(resp.Body, out)
}

func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	resp, err := c.Request(ctx, Request{
		Method:  stdhttp.MethodPost,
		URL:     rawURL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		return err
	}

	return unmarshalBody(resp.Body, out)
}

func (c *Client) PostJSON(ctx context.Context, rawURL string, body, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	resp, err := c.Request(ctx, Request{
		Method:  stdhttp.MethodPost,
		URL:     rawURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    encoded,
	})
	if err != nil {
		return err
	}

	return unmarshalBody(resp.Body, out)
}

func (c *Client) Delete(ctx context.Context, rawURL string) error {
	_, err := c.Request(ctx, Request{Method: stdhttp.MethodDelete, URL: rawURL})

	return err
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	httpReq, err := stdhttp.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if c.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	if c.authn != nil {
		if err := c.authn.Authenticate(ctx, httpReq); err != nil {
			return Response{}, err
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) refreshableProvider() TokenProvider {
	bearer, ok := c.authn.(*BearerAuth)
	if !ok {
		return nil
	}

	return bearer.Provider
}

func decode(resp *Response) error {
	body, err := auth.DecodeResponse(resp.StatusCode, resp.Body)
	if err != nil {
		return err
	}

	resp.Body = body

	return nil
}

func unmarshalBody(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}

	return json.Unmarshal(body, out)
}

func isTokenRejection(status int, err error) bool {
	var svcErr *auth.ServiceError
	if errors.As(err, &svcErr) {
		code := strings.ToLower(svcErr.Code)
		if strings.Contains(code, "invalid_token") {
			return true
		}

		if code == "errors.com.epicgames.common.authentication.token_verification_failed" {
			return true
		}
	}

	return status == stdhttp.StatusUnauthorized
}
