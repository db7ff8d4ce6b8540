// Package resources holds the thin accessors for downstream game services.
// They are pass-through wrappers over the authenticated pipeline: no schema
// modeling, callers get the raw JSON document.
package resources

import (
	"context"
	"encoding/json"
	"net/url"
)

const (
	DefaultNewsURL        = "https://fortnitecontent-website-prod07.ol.epicgames.com/content/api/pages/fortnite-game"
	DefaultCatalogURL     = "https://fngw-mcp-gc-livefn.ol.epicgames.com/fortnite/api/storefront/v2/catalog"
	DefaultLeaderboardURL = "https://fngw-mcp-gc-livefn.ol.epicgames.com/fortnite/api/leaderboards/type/global/stat"
	DefaultStatsURL       = "https://fngw-mcp-gc-livefn.ol.epicgames.com/fortnite/api/stats/accountId"
	DefaultStatusURL      = "https://lightswitch-public-service-prod06.ol.epicgames.com/lightswitch/api/service/bulk/status?serviceId=Fortnite"
)

// Doer is the narrow authenticated-request surface the accessors consume.
type Doer interface {
	GetJSON(ctx context.Context, url string, out any) error
	PostJSON(ctx context.Context, url string, body, out any) error
}

type News struct {
	http Doer
	url  string
}

func NewNews(http Doer, rawURL string) *News {
	if rawURL == "" {
		rawURL = DefaultNewsURL
	}

	return &News{http: http, url: rawURL}
}

func (n *News) Pages(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := n.http.GetJSON(ctx, n.url, &out); err != nil {
		return nil, err
	}

	return out, nil
}

type Storefront struct {
	http Doer
	url  string
}

func NewStorefront(http Doer, rawURL string) *Storefront {
	if rawURL == "" {
		rawURL = DefaultCatalogURL
	}

	return &Storefront{http: http, url: rawURL}
}

func (s *Storefront) Catalog(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.http.GetJSON(ctx, s.url, &out); err != nil {
		return nil, err
	}

	return out, nil
}

type Leaderboard struct {
	http Doer
	base string
}

func NewLeaderboard(http Doer, baseURL string) *Leaderboard {
	if baseURL == "" {
		baseURL = DefaultLeaderboardURL
	}

	return &Leaderboard{http: http, base: baseURL}
}

// Window fetches one leaderboard window, e.g. stat
// "br_placetop1_pc_m0_p2" and window "weekly".
func (l *Leaderboard) Window(ctx context.Context, stat, window string) (json.RawMessage, error) {
	var out json.RawMessage
	rawURL := l.base + "/" + url.PathEscape(stat) + "/window/" + url.PathEscape(window)
	if err := l.http.PostJSON(ctx, rawURL, []string{}, &out); err != nil {
		return nil, err
	}

	return out, nil
}

type Stats struct {
	http Doer
	base string
}

func NewStats(http Doer, baseURL string) *Stats {
	if baseURL == "" {
		baseURL = DefaultStatsURL
	}

	return &Stats{http: http, base: baseURL}
}

func (s *Stats) Bulk(ctx context.Context, accountID string) (json.RawMessage, error) {
	var out json.RawMessage
	rawURL := s.base + "/" + url.PathEscape(accountID) + "/bulk/window/alltime"
	if err := s.http.GetJSON(ctx, rawURL, &out); err != nil {
		return nil, err
	}

	return out, nil
}

type Status struct {
	http Doer
	url  string
}

func NewStatus(http Doer, rawURL string) *Status {
	if rawURL == "" {
		rawURL = DefaultStatusURL
	}

	return &Status{http: http, url: rawURL}
}

func (s *Status) Bulk(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.http.GetJSON(ctx, s.url, &out); err != nil {
		return nil, err
	}

	return out, nil
}
