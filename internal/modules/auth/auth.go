package auth

import (
	"context"
	"errors"
	"time"

	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

var (
	ErrNameRequired = errors.New("cashier name is required")
	ErrNotLoggedIn  = errors.New("no cashier is logged in")
	ErrInvalidToken = errors.New("invalid or expired session token")
)

// Cashier is the person operating the terminal.
type Cashier struct {
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	AvatarPending bool      `json:"avatarPending"`
	LoggedInAt    time.Time `json:"loggedInAt"`
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Cashier   Cashier   `json:"cashier"`
}

type LoginRequest struct {
	Name string `json:"name"`
}

// AvatarGenerator draws a profile picture for a cashier and returns it as a data URL.
type AvatarGenerator interface {
	Avatar(ctx context.Context, name string) (string, error)
}

// BillClearer empties the bill in progress when the cashier leaves.
type BillClearer interface {
	Clear(ctx context.Context) ledger.Snapshot
}

// Service defines the cashier session operations. There is at most one session at a time.
type Service interface {
	// Login starts a session for name, replacing any current one.
	Login(ctx context.Context, name string) (Session, error)
	// Logout ends the session and clears the bill.
	Logout(ctx context.Context) error
	Current(ctx context.Context) (Cashier, error)
	RegenerateAvatar(ctx context.Context) (Cashier, error)
	// Verify checks a session token and returns the cashier it belongs to.
	Verify(token string) (Cashier, error)
	// Close stops background avatar generation.
	Close()
}
