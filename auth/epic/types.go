package epic

import (
	"context"
	"time"

	"github.com/ceskypane/epicgo/auth"
	transporthttp "github.com/ceskypane/epicgo/transport/http"
)

const (
	DefaultTokenURL       = "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/token"
	DefaultSessionsURL    = "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/sessions/kill"
	DefaultAccountInfoURL = "https://account-public-service-prod.ol.epicgames.com/account/api/public/account"

	// KillTypeOtherSessions invalidates every other server-side session tied
	// to the account, leaving the current one alive.
	KillTypeOtherSessions = "OTHERS_ACCOUNT_CLIENT_SERVICE"
)

type Config struct {
	TokenURL string

	// HTTP is the pipeline the grant requests travel through. For login-time
	// grants this is the unauthenticated client-credentials pipeline carrying
	// the device identity header.
	HTTP *transporthttp.Client

	Now func() time.Time
}

type OAuthClient interface {
	TokenByPassword(ctx context.Context, email, password string) (auth.TokenSet, error)
	TokenByOTP(ctx context.Context, code, challenge string) (auth.TokenSet, error)
	TokenByRefresh(ctx context.Context, refreshToken string) (auth.TokenSet, error)
}
