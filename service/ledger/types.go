package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the direction of a transaction relative to the queried wallet.
type TxType string

const (
	Inbound  TxType = "inbound-transaction"
	Outbound TxType = "outbound-transaction"
	NA       TxType = "NA"
)

// Wallet identifies the address being queried and the currency it holds.
type Wallet struct {
	Address        string `json:"address"`
	CurrencySymbol string `json:"currency_symbol"`
}

// NewWallet normalizes the currency symbol to upper case.
func NewWallet(address, symbol string) Wallet {
	return Wallet{
		Address:        strings.TrimSpace(address),
		CurrencySymbol: strings.ToUpper(strings.TrimSpace(symbol)),
	}
}

// Transaction is the canonical, provider-independent transfer record.
type Transaction struct {
	UniqueID         string          `json:"unique_id"`
	Source           *string         `json:"source,omitempty"`
	Destination      *string         `json:"destination,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	TxType           TxType          `json:"tx_type"`
	Date             time.Time       `json:"date"`
	TransactionID    string          `json:"transaction_id"`
	ActivityCategory string          `json:"activity_category"`

	// Context carried for downstream consumers. Not part of identity.
	Network  string `json:"network,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Balance is the current holding of a wallet in display units.
type Balance struct {
	CurrencySymbol string          `json:"currency_symbol"`
	Amount         decimal.Decimal `json:"amount"`
	AccountType    string          `json:"account_type"`
}

// AccountTypeWallet is the account type reported for externally owned addresses.
const AccountTypeWallet = "wallet"
