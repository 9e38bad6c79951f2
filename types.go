package marketAuth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
)

// UserProvider is the interface callers implement to connect the Engine to
// their user table. sqlstore.UserStore is the bundled implementation.
type UserProvider interface {
	// GetUserByIdentifier looks up a user by normalized email and returns
	// ErrUserNotFound when absent.
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	// CreateUser returns ErrProviderDuplicateIdentifier when the email exists.
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// UserRecord is the stored account.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput is passed to UserProvider.CreateUser. PasswordHash is
// already hashed.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// SignupRequest is the input to Engine.Signup.
type SignupRequest struct {
	Username string
	Email    string
	Password string
}

// PublicUser is the account view safe to return to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResult is returned by a successful Signup or Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    string
	Email     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func publicUser(rec UserRecord) PublicUser {
	return PublicUser{ID: rec.UserID, Username: rec.Username, Email: rec.Email}
}

// AuditEvent is emitted for login, lockout, and signup outcomes.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs events through a zap.Logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
