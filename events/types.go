package events

import "time"

type Name string

const (
	EventLoggedIn          Name = "auth.logged_in"
	EventTwoFactorRequired Name = "auth.two_factor_required"
	EventLoggedOut         Name = "auth.logged_out"

	EventAuthRefreshed     Name = "auth.refreshed"
	EventAuthRefreshFailed Name = "auth.refresh_failed"
	EventAuthFatal         Name = "auth.fatal"

	EventSessionsKilled Name = "auth.sessions_killed"
)

type Event interface {
	Name() Name
	Timestamp() time.Time
}

type Base struct {
	At time.Time
}

func (b Base) Timestamp() time.Time {
	return b.At
}

type LoggedIn struct {
	Base
	AccountID   string
	DisplayName string
}

func (e LoggedIn) Name() Name {
	return EventLoggedIn
}

type TwoFactorRequired struct {
	Base
}

func (e TwoFactorRequired) Name() Name {
	return EventTwoFactorRequired
}

type LoggedOut struct {
	Base
	Err error
}

func (e LoggedOut) Name() Name {
	return EventLoggedOut
}

type AuthRefreshed struct {
	Base
	ExpiresAt time.Time
}

func (e AuthRefreshed) Name() Name {
	return EventAuthRefreshed
}

type AuthRefreshFailed struct {
	Base
	Err error
}

func (e AuthRefreshFailed) Name() Name {
	return EventAuthRefreshFailed
}

type AuthFatal struct {
	Base
	Err error
}

func (e AuthFatal) Name() Name {
	return EventAuthFatal
}

type SessionsKilled struct {
	Base
	KillType string
}

func (e SessionsKilled) Name() Name {
	return EventSessionsKilled
}
