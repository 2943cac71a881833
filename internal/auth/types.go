package auth

import (
	"strings"
	"time"
)

// Kind identifies one of the two credential slots.
type Kind int

const (
	KindApplication Kind = iota
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "app"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseKind accepts "app"/"application" and "user".
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "app", "application":
		return KindApplication, true
	case "user":
		return KindUser, true
	default:
		return 0, false
	}
}

// Tokens holds pre-existing token values handed to the manager at construction.
type Tokens struct {
	UserToken    string
	AppToken     string
	RefreshToken string
}

// Secrets holds the application secret and the auto-renew opt-ins.
type Secrets struct {
	ClientSecret     string
	RefreshAppToken  bool
	RefreshUserToken bool
}

// Config is the construction input of a Manager.
type Config struct {
	ClientID string
	Tokens   Tokens
	Secrets  Secrets
}

// SlotStatus is a point-in-time view of one slot. Token values are never included.
type SlotStatus struct {
	Kind                string    `json:"kind"`
	HasToken            bool      `json:"hasToken"`
	TokenLength         int       `json:"tokenLength"`
	Renewable           bool      `json:"renewable"`
	AutoRenew           bool      `json:"autoRenew"`
	Refreshing          bool      `json:"refreshing"`
	LastRenewal         time.Time `json:"lastRenewal,omitzero"`
	NextRenewal         time.Time `json:"nextRenewal,omitzero"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Stale reports whether the most recent renewal attempt failed.
func (s SlotStatus) Stale() bool {
	return s.LastError != ""
}

// RenewalEvent is delivered to renewal hooks after every renewal attempt.
type RenewalEvent struct {
	Kind         Kind
	Token        string
	RefreshToken string
	ExpiresIn    time.Duration
	Err          error
}
