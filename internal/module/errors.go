package module

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is wrapped by the ConfigError a registry returns
	// for a provider name it has no constructor for.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingCredential is wrapped by the ConfigError an adapter returns
	// when its API credential is absent at setup time.
	ErrMissingCredential = errors.New("missing credential")

	// ErrLengthMismatch is returned by Retriever.Add when texts and
	// embeddings differ in length.
	ErrLengthMismatch = errors.New("texts and embeddings length mismatch")
)

// ConfigError is a fatal configuration problem: raised at setup, never
// retried. It wraps one of the sentinel errors above so callers can branch
// with errors.Is.
type ConfigError struct {
	Role   string // "embedder", "retriever", "generator", "evaluator"
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Role, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError for the given role.
func NewConfigError(role, reason string, err error) *ConfigError {
	return &ConfigError{Role: role, Reason: reason, Err: err}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
