// Package normalize converts provider-specific history into canonical
// ledger transactions. Every function in this package is pure: no I/O, no
// shared state, and identical input yields identical output.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// TimeUnit is the encoding of a provider's timestamps.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Milliseconds
	// RippleEpoch is seconds since 2000-01-01T00:00:00Z, the XRP Ledger's native clock.
	RippleEpoch
	RFC3339
)

// rippleEpochOffset is the Unix time of 2000-01-01T00:00:00Z.
const rippleEpochOffset = 946684800

// Shape describes the fixed properties of one provider's records.
type Shape struct {
	Provider string
	Decimals int32
	TimeUnit TimeUnit
	// PerLegDuplicates marks providers that report the same native id once
	// per leg of a transfer. Their identities include the leg and direction.
	PerLegDuplicates bool
}

// Record is a provider record reduced to the fields the pipeline needs.
type Record struct {
	NativeID    string
	LegID       string // distinguishes legs sharing NativeID on per-leg shapes
	Source      string
	Destination string
	Amount      string // integer string in the smallest native unit
	Timestamp   string // encoded per Shape.TimeUnit
	Transfer    bool   // false for fee-only, reveal, contract and similar records
}

// Skip explains why a record produced no transaction.
type Skip struct {
	NativeID string
	Reason   string
}

// Result is the output of a normalization pass.
type Result struct {
	Transactions []ledger.Transaction
	Filtered     int
	Skipped      []Skip
	Duplicates   int
}

// Run executes the pipeline over records: filter, classify, convert units,
// build identity, parse time, then sort ascending by date. A record that
// fails conversion is skipped without affecting the rest; if every record
// fails the result is an empty, non-nil slice.
func Run(shape Shape, records []Record, network string, w ledger.Wallet) Result {
	res := Result{Transactions: make([]ledger.Transaction, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if !rec.Transfer {
			res.Filtered++
			continue
		}

		amount, err := ToDisplayUnits(rec.Amount, shape.Decimals)
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{NativeID: rec.NativeID, Reason: err.Error()})
			continue
		}

		date, err := ParseTimestamp(rec.Timestamp, shape.TimeUnit)
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{NativeID: rec.NativeID, Reason: err.Error()})
			continue
		}

		if rec.NativeID == "" {
			res.Skipped = append(res.Skipped, Skip{Reason: "missing native id"})
			continue
		}

		for _, txType := range legs(shape, w, rec) {
			id := UniqueID(w.Address, rec.NativeID, rec.LegID, txType, shape.PerLegDuplicates)
			if _, dup := seen[id]; dup {
				res.Duplicates++
				continue
			}
			seen[id] = struct{}{}

			res.Transactions = append(res.Transactions, ledger.Transaction{
				UniqueID:         id,
				Source:           optional(rec.Source),
				Destination:      optional(rec.Destination),
				Amount:           amount,
				TxType:           txType,
				Date:             date,
				TransactionID:    rec.NativeID,
				ActivityCategory: string(txType),
				Network:          network,
				Provider:         shape.Provider,
			})
		}
	}

	sort.SliceStable(res.Transactions, func(i, j int) bool {
		return res.Transactions[i].Date.Before(res.Transactions[j].Date)
	})
	return res
}

// legs returns the directions a record yields. A self-transfer is reported
// once as inbound, or as both legs when the provider reports legs separately.
func legs(shape Shape, w ledger.Wallet, rec Record) []ledger.TxType {
	in := strings.EqualFold(rec.Destination, w.Address)
	out := strings.EqualFold(rec.Source, w.Address)
	if in && out && shape.PerLegDuplicates {
		return []ledger.TxType{ledger.Outbound, ledger.Inbound}
	}
	return []ledger.TxType{Classify(w.Address, rec.Source, rec.Destination)}
}

// Classify determines direction relative to address, case-insensitively.
func Classify(address, source, destination string) ledger.TxType {
	switch {
	case address == "":
		return ledger.NA
	case strings.EqualFold(destination, address):
		return ledger.Inbound
	case strings.EqualFold(source, address):
		return ledger.Outbound
	default:
		return ledger.NA
	}
}

// UniqueID builds the stable identity of a transaction within a wallet.
// Per-leg identities add the leg, when the provider reports one, and the
// direction, so both sides of a self-transfer leg stay distinct.
func UniqueID(address, nativeID, legID string, txType ledger.TxType, perLeg bool) string {
	if !perLeg {
		return address + nativeID
	}
	if legID != "" {
		return address + nativeID + ":" + legID + ":" + string(txType)
	}
	return address + nativeID + ":" + string(txType)
}

// ToDisplayUnits converts an integer amount in native units to display
// units by shifting the decimal point. Empty input is zero.
func ToDisplayUnits(raw string, decimals int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("amount %q is not an integer in native units", raw)
	}
	return d.Abs().Shift(-decimals), nil
}

// FromDisplayUnits is the inverse of ToDisplayUnits. Precision finer than
// one native unit is truncated.
func FromDisplayUnits(d decimal.Decimal, decimals int32) string {
	return d.Shift(decimals).Truncate(0).String()
}

// ParseTimestamp decodes raw according to unit and returns it in UTC.
func ParseTimestamp(raw string, unit TimeUnit) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if unit == RFC3339 {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
		}
		return t.UTC(), nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	switch unit {
	case Milliseconds:
		return time.UnixMilli(n).UTC(), nil
	case RippleEpoch:
		return time.Unix(n+rippleEpochOffset, 0).UTC(), nil
	default:
		return time.Unix(n, 0).UTC(), nil
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
