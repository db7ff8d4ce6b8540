package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ceskypane/epicgo/auth"
	"github.com/ceskypane/epicgo/auth/epic"
	"github.com/ceskypane/epicgo/events"
	"github.com/ceskypane/epicgo/logging"
	"github.com/ceskypane/epicgo/resources"
	transporthttp "github.com/ceskypane/epicgo/transport/http"
)

// authState is the explicit login state machine. The challenge token is only
// populated in stateChallengePending, the session only in stateAuthenticated.
type authState int

const (
	stateUnauthenticated authState = iota
	stateChallengePending
	stateAuthenticated
)

type session struct {
	accountID   string
	inAppID     string
	displayName string
}

// Client is the facade over the account service: it drives the
// login/two-factor state machine and owns the single active request
// pipeline, swapping it from client-credentials to bearer mode when a token
// exchange succeeds.
type Client struct {
	cfg Config
	log logging.Logger

	bus *events.Bus
	sub *events.Subscription

	tokenStore  auth.TokenStore
	deviceStore auth.DeviceIDStore

	mu        sync.Mutex
	state     authState
	challenge string
	deviceID  string
	sess      session
	http      *transporthttp.Client
	grant     epic.OAuthClient
	source    *tokenSource

	infoMu sync.Mutex
	info   *auth.AccountInfo
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultLauncherClientID
	}

	if cfg.ClientSecret == "" {
		cfg.ClientSecret = DefaultLauncherClientSecret
	}

	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	bus := events.NewBus()
	sub, err := bus.Subscribe(cfg.EventBuffer)
	if err != nil {
		return nil, err
	}

	tokenStore := cfg.TokenStore
	if tokenStore == nil {
		tokenStore = auth.NewMemoryTokenStore()
	}

	deviceID := strings.TrimSpace(cfg.DeviceID)
	if deviceID == "" {
		deviceID = auth.NewDeviceID()
	}

	log := logging.With(cfg.Logger)
	cfg.Logger = log

	c := &Client{
		cfg:         cfg,
		log:         log,
		bus:         bus,
		sub:         sub,
		tokenStore:  tokenStore,
		deviceStore: cfg.DeviceIDStore,
		deviceID:    deviceID,
		state:       stateUnauthenticated,
	}
	c.http = c.buildUnauthPipeline(deviceID)

	return c, nil
}

// Login exchanges the credentials for a token set. When the service demands
// two-factor authentication the returned error is a *auth.TwoFactorError,
// the challenge is held, and the login must be completed with TwoFactor.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("client: email and password are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deviceID := strings.TrimSpace(creds.DeviceID)
	if deviceID == "" && c.deviceStore != nil {
		if stored, ok, err := c.deviceStore.Load(ctx, creds.Email); err == nil && ok {
			deviceID = stored
		}
	}
	if deviceID == "" {
		deviceID = c.deviceID
	}
	c.deviceID = deviceID

	// Fresh unauthenticated pipeline per attempt so the one-time login
	// headers fire again.
	c.state = stateUnauthenticated
	c.challenge = ""
	c.sess = session{}
	c.http = c.buildUnauthPipeline(deviceID)

	grant, err := epic.NewClient(epic.Config{TokenURL: c.cfg.TokenURL, HTTP: c.http})
	if err != nil {
		return err
	}
	c.grant = grant

	tokens, err := grant.TokenByPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		if challenge, ok := auth.TwoFactorChallenge(err); ok {
			c.challenge = challenge
			c.state = stateChallengePending
			c.log.Info("login: two-factor challenge received")
			c.emit(events.TwoFactorRequired{Base: events.Base{At: time.Now().UTC()}})
		}

		return err
	}

	if err := c.completeLogin(ctx, tokens); err != nil {
		return err
	}

	if c.deviceStore != nil {
		_ = c.deviceStore.Save(ctx, creds.Email, deviceID)
	}

	return nil
}

// TwoFactor completes a pending challenge with a one-time code. It fails
// locally, without a network call, when no challenge is held.
func (c *Client) TwoFactor(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateChallengePending || c.challenge == "" || c.grant == nil {
		return auth.ErrNoPendingChallenge
	}

	tokens, err := c.grant.TokenByOTP(ctx, code, c.challenge)
	if err != nil {
		// Grant rejected; the challenge stays pending for another attempt.
		return err
	}

	return c.completeLogin(ctx, tokens)
}

// completeLogin commits a successful token exchange: store the tokens, build
// the bearer pipeline, and kill the account's other server-side sessions
// through it. The kill call is an unconditional side effect and its failure
// aborts the login. Caller holds c.mu.
func (c *Client) completeLogin(ctx context.Context, tokens auth.TokenSet) error {
	if err := c.tokenStore.Save(ctx, tokens); err != nil {
		return err
	}

	source := newTokenSource(c.tokenStore, c.grant, c.cfg.RefreshSkew)
	authed := transporthttp.NewClient(c.cfg.HTTPClient, &transporthttp.BearerAuth{Provider: source}, c.cfg.HTTP)

	if err := authed.Delete(ctx, epic.KillSessionsURL(c.cfg.SessionsURL, epic.KillTypeOtherSessions)); err != nil {
		_ = c.tokenStore.Clear(ctx)
		c.state = stateUnauthenticated
		c.challenge = ""
		c.http = c.buildUnauthPipeline(c.deviceID)

		return fmt.Errorf("client: kill sessions: %w", err)
	}

	c.source = source
	c.http = authed
	c.state = stateAuthenticated
	c.challenge = ""
	c.sess = session{
		accountID:   tokens.AccountID,
		inAppID:     tokens.InAppID,
		displayName: tokens.DisplayName,
	}

	c.log.Info("login: authenticated", logging.F("account_id", tokens.AccountID))
	c.emit(events.SessionsKilled{Base: events.Base{At: time.Now().UTC()}, KillType: epic.KillTypeOtherSessions})
	c.emit(events.LoggedIn{
		Base:        events.Base{At: time.Now().UTC()},
		AccountID:   tokens.AccountID,
		DisplayName: tokens.DisplayName,
	})

	return nil
}

// Logout invalidates the current session token server-side, clears the
// stored token set, and reverts to the unauthenticated pipeline.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var killErr error
	if c.state == stateAuthenticated {
		if tokens, ok, err := c.tokenStore.Load(ctx); err == nil && ok && tokens.AccessToken != "" {
			killErr = c.http.Delete(ctx, epic.KillTokenURL(c.cfg.SessionsURL, tokens.AccessToken))
		}
	}

	_ = c.tokenStore.Clear(ctx)
	c.state = stateUnauthenticated
	c.challenge = ""
	c.sess = session{}
	c.source = nil
	c.http = c.buildUnauthPipeline(c.deviceID)

	c.infoMu.Lock()
	c.info = nil
	c.infoMu.Unlock()

	c.emit(events.LoggedOut{Base: events.Base{At: time.Now().UTC()}, Err: killErr})

	return killErr
}

func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sess.accountID
}

// InAppID returns the in-app id from the token exchange, or "" when the
// service omitted it.
func (c *Client) InAppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sess.inAppID
}

// DeviceID returns the device identity used on the last login attempt.
// Replaying it on a future login lets the service skip the two-factor
// challenge for a recognized device.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deviceID
}

// AccountInfo fetches the public account record once and memoizes it for the
// lifetime of the client.
func (c *Client) AccountInfo(ctx context.Context) (auth.AccountInfo, error) {
	http, sess, err := c.authedPipeline()
	if err != nil {
		return auth.AccountInfo{}, err
	}

	c.infoMu.Lock()
	defer c.infoMu.Unlock()

	if c.info != nil {
		return *c.info, nil
	}

	var info auth.AccountInfo
	if err := http.GetJSON(ctx, epic.AccountInfoURL(c.cfg.AccountInfoURL, sess.accountID), &info); err != nil {
		return auth.AccountInfo{}, err
	}

	c.info = &info

	return info, nil
}

func (c *Client) DisplayName(ctx context.Context) (string, error) {
	info, err := c.AccountInfo(ctx)
	if err != nil {
		return "", err
	}

	return info.DisplayName, nil
}

func (c *Client) News() *resources.News {
	return resources.NewNews(c.doer(), "")
}

func (c *Client) Storefront() *resources.Storefront {
	return resources.NewStorefront(c.doer(), "")
}

func (c *Client) Leaderboard() *resources.Leaderboard {
	return resources.NewLeaderboard(c.doer(), "")
}

func (c *Client) Stats() *resources.Stats {
	return resources.NewStats(c.doer(), "")
}

func (c *Client) Status() *resources.Status {
	return resources.NewStatus(c.doer(), "")
}

func (c *Client) Events() <-chan events.Event {
	if c.sub == nil {
		dummy := make(chan events.Event)
		close(dummy)
		return dummy
	}

	return c.sub.C
}

func (c *Client) WaitFor(ctx context.Context, pred events.Predicate) (events.Event, error) {
	return c.bus.WaitFor(ctx, pred)
}

// NewRefreshScheduler builds the opt-in background refresh loop bound to
// this client's token store and grant channel. The caller runs it.
func (c *Client) NewRefreshScheduler(cfg auth.SchedulerConfig) (*auth.RefreshScheduler, error) {
	cfg.TokenStore = c.tokenStore
	cfg.Refresher = &schedulerRefresher{c: c}
	cfg.Bus = c.bus
	if cfg.Logger == nil {
		cfg.Logger = c.log
	}

	return auth.NewRefreshScheduler(cfg)
}

func (c *Client) buildUnauthPipeline(deviceID string) *transporthttp.Client {
	return transporthttp.NewClient(c.cfg.HTTPClient, &transporthttp.ClientCredentials{
		ClientID:            c.cfg.ClientID,
		ClientSecret:        c.cfg.ClientSecret,
		DeviceID:            deviceID,
		FirstRequestHeaders: c.cfg.FirstRequestHeaders,
	}, c.cfg.HTTP)
}

// authedPipeline returns the current pipeline only when a session exists;
// anything needing a session before then fails fast rather than leaking onto
// the unauthenticated channel.
func (c *Client) authedPipeline() (*transporthttp.Client, session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAuthenticated {
		return nil, session{}, auth.ErrNotAuthenticated
	}

	return c.http, c.sess, nil
}

func (c *Client) currentGrantClient() epic.OAuthClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.grant
}

func (c *Client) emit(evt events.Event) {
	_ = c.bus.Emit(evt)
}

// doer is the narrow surface handed to resource accessors. Every call checks
// the session first.
type authedDoer struct {
	c *Client
}

func (c *Client) doer() *authedDoer {
	return &authedDoer{c: c}
}

func (d *authedDoer) GetJSON(ctx context.Context, url string, out any) error {
	http, _, err := d.c.authedPipeline()
	if err != nil {
		return err
	}

	return http.GetJSON(ctx, url, out)
}

func (d *authedDoer) PostJSON(ctx context.Context, url string, body, out any) error {
	http, _, err := d.c.authedPipeline()
	if err != nil {
		return err
	}

	return http.PostJSON(ctx, url, body, out)
}
