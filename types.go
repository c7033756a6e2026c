package auth

import (
	"context"
	"fmt"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to the LoggerProvider interface.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

// Identity is the opaque session handle issued by the remote identity
// provider. It is distinct from the application's UserRecord.
type Identity interface {
	ID() string
	PhoneNumber() string
}

// IdentityProvider is the remote phone/OTP authentication provider.
// CurrentIdentity returns nil, nil when nobody is signed in.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (Identity, error)
	SignOut(ctx context.Context) error
}

// DocumentStore is the hosted document database holding UserRecords.
// Lookups return nil, nil when the record does not exist.
type DocumentStore interface {
	GetUserByID(ctx context.Context, id string) (*UserRecord, error)
	CreateUser(ctx context.Context, id, phone string) (*UserRecord, error)
	FindUserByPhone(ctx context.Context, phone string) (*UserRecord, error)
}

// UserWriter is implemented by document stores that accept profile updates.
// When present, AuthService persists mutations remotely before patching the
// local session cache.
type UserWriter interface {
	UpdateUser(ctx context.Context, record *UserRecord) error
}

// KeyValueStore is durable string-to-string storage that survives process
// restarts. Callers own (de)serialization. Multi* calls are atomic per batch.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	MultiGet(ctx context.Context, keys []string) (map[string]string, error)
	MultiSet(ctx context.Context, entries map[string]string) error
	MultiRemove(ctx context.Context, keys []string) error
}

// PhoneVerifier sends and confirms one-time codes for phone sign-in.
type PhoneVerifier interface {
	SendCode(ctx context.Context, phone string) (verificationID string, err error)
	ConfirmCode(ctx context.Context, verificationID, code string) (Identity, error)
}

// SessionAuthority is the slice of AuthService the ActivityMonitor drives.
type SessionAuthority interface {
	GetAuthState(ctx context.Context) AuthStateResult
	ValidateSession(ctx context.Context) ValidationResult
	SignOut(ctx context.Context, reason LogoutReason) error
	RefreshUserData(ctx context.Context) error
}

// SignOutNotifier is implemented by authorities that announce sign-outs.
type SignOutNotifier interface {
	OnSignOut(fn func(reason LogoutReason)) (cancel func())
}

// ResolveLogger returns a provider and a named logger, preferring the
// provider's logger, then the fallback, then the default stdout logger.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	if fallback == nil {
		fallback = defLogger{}
	}

	logger := fallback
	return LoggerProviderFunc(func(string) Logger { return logger }), logger
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(format("[DBG] AUTH ", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(format("[INF] AUTH ", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(format("[WRN] AUTH ", msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(format("[ERR] AUTH ", msg, args))
}

func format(prefix, msg string, args []any) string {
	out := prefix + msg
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			out += fmt.Sprintf(" %v", args[i])
		}
	}
	return out
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}
