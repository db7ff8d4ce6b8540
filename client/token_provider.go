package client

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ceskypane/epicgo/auth"
	"github.com/ceskypane/epicgo/auth/epic"
)

// tokenSource hands the authenticated pipeline a valid access token,
// exchanging the refresh token when the stored one has expired. Concurrent
// callers racing an expiry share a single refresh grant; the store is left
// untouched when a refresh fails so the next call can try again.
type tokenSource struct {
	store auth.TokenStore
	oauth epic.OAuthClient
	skew  time.Duration
	now   func() time.Time
	sf    singleflight.Group
}

func newTokenSource(store auth.TokenStore, oauth epic.OAuthClient, skew time.Duration) *tokenSource {
	if skew <= 0 {
		skew = 30 * time.Second
	}

	return &tokenSource{
		store: store,
		oauth: oauth,
		skew:  skew,
		now:   time.Now,
	}
}

func (p *tokenSource) AccessToken(ctx context.Context) (string, error) {
	tokens, ok, err := p.store.Load(ctx)
	if err != nil {
		return "", err
	}

	if !ok || tokens.AccessToken == "" {
		return "", auth.ErrNoToken
	}

	if !tokens.Expired(p.now(), p.skew) {
		return tokens.AccessToken, nil
	}

	refreshed, err := p.refresh(ctx)
	if err != nil {
		return "", err
	}

	return refreshed.AccessToken, nil
}

func (p *tokenSource) Refresh(ctx context.Context) error {
	_, err := p.refresh(ctx)

	return err
}

func (p *tokenSource) refresh(ctx context.Context) (auth.TokenSet, error) {
	v, err, _ := p.sf.Do("refresh", func() (any, error) {
		current, ok, err := p.store.Load(ctx)
		if err != nil {
			return nil, err
		}

		if !ok || current.RefreshToken == "" {
			return nil, auth.ErrNoToken
		}

		next, err := p.oauth.TokenByRefresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		if err := p.store.Save(ctx, next); err != nil {
			return nil, err
		}

		return next, nil
	})
	if err != nil {
		return auth.TokenSet{}, err
	}

	return v.(auth.TokenSet), nil
}

// schedulerRefresher adapts the client's grant channel to the background
// refresh scheduler without touching the store itself.
type schedulerRefresher struct {
	c *Client
}

func (r *schedulerRefresher) Refresh(ctx context.Context, current auth.TokenSet) (auth.TokenSet, error) {
	oauth := r.c.currentGrantClient()
	if oauth == nil {
		return auth.TokenSet{}, auth.ErrNoToken
	}

	if current.RefreshToken == "" {
		return auth.TokenSet{}, auth.ErrNoToken
	}

	return oauth.TokenByRefresh(ctx, current.RefreshToken)
}
