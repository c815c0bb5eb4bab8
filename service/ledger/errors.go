package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched through errors.Is against the typed errors below.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrProvider            = errors.New("provider error")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// ConfigurationError reports an unknown network or a missing credential.
type ConfigurationError struct {
	Provider string
	Network  string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Provider != "" && e.Network != "":
		return fmt.Sprintf("configuration error: %s/%s: %s", e.Provider, e.Network, e.Reason)
	case e.Provider != "":
		return fmt.Sprintf("configuration error: %s: %s", e.Provider, e.Reason)
	default:
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ProviderError reports an upstream failure: transport, non-2xx status,
// timeout, or an envelope that could not be decoded.
type ProviderError struct {
	Provider   string
	Network    string
	Address    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s (%s) failed for %s", e.Provider, e.Network, e.Address)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// Timeout reports whether the failure was a deadline expiry.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Retryable reports whether a caller-level retry could succeed.
// The pipeline itself never retries.
func (e *ProviderError) Retryable() bool {
	if e.Timeout() {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// UnsupportedCurrencyError is returned for a currency symbol with no adapter.
type UnsupportedCurrencyError struct {
	Symbol string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency: %q", e.Symbol)
}

func (e *UnsupportedCurrencyError) Is(target error) bool {
	return target == ErrUnsupportedCurrency
}
