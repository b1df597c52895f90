package vault

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// StateTTL is how long an OAuth state token stays valid.
const StateTTL = 10 * time.Minute

var (
	// ErrInvalidState is returned for undecodable or malformed state tokens.
	ErrInvalidState = eris.New("vault: invalid oauth state")
	// ErrExpiredState is returned for state tokens older than StateTTL.
	ErrExpiredState = eris.New("vault: oauth state expired")
)

// State is the decoded content of an OAuth state token.
type State struct {
	UserID   string
	Provider string
	IssuedAt time.Time
}

// StateIssuer creates and verifies OAuth state tokens.
type StateIssuer struct {
	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewStateIssuer returns an issuer on the wall clock.
func NewStateIssuer() *StateIssuer {
	return &StateIssuer{nowFunc: time.Now}
}

// NewStateIssuerWithClock returns an issuer reading time from now.
func NewStateIssuerWithClock(now func() time.Time) *StateIssuer {
	return &StateIssuer{nowFunc: now}
}

// Issue encodes userID, provider and the current time in milliseconds.
func (s *StateIssuer) Issue(userID, provider string) string {
	raw := userID + ":" + provider + ":" + strconv.FormatInt(s.nowFunc().UnixMilli(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Verify decodes a state token and checks its age.
func (s *StateIssuer) Verify(state string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(state, "="))
	if err != nil {
		return State{}, eris.Wrap(ErrInvalidState, "vault: decode state")
	}

	// User ids may themselves contain colons; provider and timestamp may not.
	parts := strings.Split(string(raw), ":")
	if len(parts) < 3 {
		return State{}, eris.Wrap(ErrInvalidState, "vault: state segments")
	}
	ms, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return State{}, eris.Wrap(ErrInvalidState, "vault: state timestamp")
	}
	provider := parts[len(parts)-2]
	userID := strings.Join(parts[:len(parts)-2], ":")
	if userID == "" || provider == "" {
		return State{}, eris.Wrap(ErrInvalidState, "vault: empty state field")
	}

	issued := time.UnixMilli(ms)
	if s.nowFunc().Sub(issued) > StateTTL {
		return State{}, eris.Wrapf(ErrExpiredState, "vault: issued %s", issued.UTC().Format(time.RFC3339))
	}

	return State{UserID: userID, Provider: provider, IssuedAt: issued}, nil
}
