package server

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 128     // bech32 and hex addresses fit with room to spare
	maxSymbolLength    = 16
	maxSyncInterval    = 24 * time.Hour
)

var (
	// Every supported chain encodes addresses in ASCII letters and digits
	// (base58, bech32, hex with 0x prefix).
	validAddressRegex = regexp.MustCompile(`^[0-9A-Za-z]+$`)
	validSymbolRegex  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	lowerAddr := strings.ToLower(address)
	sqlPatterns := []string{"drop ", "delete ", "insert ", "update ", "select ", "--", "/*", "*/", ";"}
	for _, pattern := range sqlPatterns {
		if strings.Contains(lowerAddr, pattern) {
			return errorf("invalid characters in address: suspicious pattern detected")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only letters and digits")
	}

	return nil
}

// validateSymbol validates a currency symbol.
func validateSymbol(symbol string) error {
	if symbol == "" {
		return errorf("symbol is required")
	}
	if len(symbol) > maxSymbolLength || !validSymbolRegex.MatchString(symbol) {
		return errorf("invalid symbol %q", symbol)
	}
	return nil
}

// validateSyncInterval validates a sync interval for reasonable bounds.
func validateSyncInterval(interval, minInterval time.Duration) error {
	if interval <= 0 {
		return errorf("interval must be positive")
	}
	if interval < minInterval {
		return errorf("interval must be at least %v", minInterval)
	}
	if interval > maxSyncInterval {
		return errorf("interval cannot exceed %v", maxSyncInterval)
	}
	return nil
}

// parseWindow parses the optional RFC3339 since/until bounds.
func parseWindow(since, until string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if since != "" {
		if from, err = time.Parse(time.RFC3339, since); err != nil {
			return from, to, errorf("invalid since: must be RFC3339")
		}
	}
	if until != "" {
		if to, err = time.Parse(time.RFC3339, until); err != nil {
			return from, to, errorf("invalid until: must be RFC3339")
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, errorf("since must be before until")
	}
	return from, to, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
