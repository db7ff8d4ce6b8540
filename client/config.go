package client

import (
	"net/http"
	"time"

	"github.com/ceskypane/epicgo/auth"
	"github.com/ceskypane/epicgo/logging"
	transporthttp "github.com/ceskypane/epicgo/transport/http"
)

// DefaultLauncherClientID and DefaultLauncherClientSecret are the launcher
// client identity the account service expects on the basic-auth header of
// unauthenticated requests.
const (
	DefaultLauncherClientID     = "34a02cf8f4414e29b15921876da36f9a"
	DefaultLauncherClientSecret = "daafbccc737745039dffe53d94fc76cf"
)

type Config struct {
	// ClientID/ClientSecret identify this client application to the account
	// service. Defaults to the launcher identity.
	ClientID     string
	ClientSecret string

	// DeviceID fingerprints this client instance. Generated when empty; a
	// per-login override in auth.Credentials takes precedence.
	DeviceID string

	// DeviceIDStore, when set, persists device ids per account email so later
	// logins replay them and may skip the two-factor challenge.
	DeviceIDStore auth.DeviceIDStore

	TokenStore auth.TokenStore

	// Endpoint overrides, used by tests and private deployments.
	TokenURL       string
	SessionsURL    string
	AccountInfoURL string

	// FirstRequestHeaders are stamped on the first request of each login
	// attempt only.
	FirstRequestHeaders map[string]string

	HTTPClient *http.Client
	HTTP       transporthttp.Config

	// RefreshSkew is how early a token counts as expired.
	RefreshSkew time.Duration

	EventBuffer int
	Logger      logging.Logger
}
