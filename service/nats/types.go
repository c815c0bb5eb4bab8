package nats

import (
	"strings"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// TransactionEvent is a canonical transaction published to NATS.
// It is published to the subject "txns.{symbol}.{wallet_address}" in JetStream.
type TransactionEvent struct {
	UniqueID      string `json:"unique_id"`
	TransactionID string `json:"transaction_id"`

	// Wallet the transaction was fetched for
	WalletAddress  string `json:"wallet_address"`
	CurrencySymbol string `json:"currency_symbol"`
	Network        string `json:"network"`
	Provider       string `json:"provider"`

	Source      *string         `json:"source,omitempty"`
	Destination *string         `json:"destination,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	TxType      ledger.TxType   `json:"tx_type"`
	Date        time.Time       `json:"date"`

	PublishedAt time.Time `json:"published_at"`
}

// FromTransaction builds the event for a transaction fetched for w.
func FromTransaction(w ledger.Wallet, txn ledger.Transaction) *TransactionEvent {
	return &TransactionEvent{
		UniqueID:       txn.UniqueID,
		TransactionID:  txn.TransactionID,
		WalletAddress:  w.Address,
		CurrencySymbol: w.CurrencySymbol,
		Network:        txn.Network,
		Provider:       txn.Provider,
		Source:         txn.Source,
		Destination:    txn.Destination,
		Amount:         txn.Amount,
		TxType:         txn.TxType,
		Date:           txn.Date,
		PublishedAt:    time.Now().UTC(),
	}
}

// FromTransactions builds one event per transaction.
func FromTransactions(w ledger.Wallet, txns []ledger.Transaction) []*TransactionEvent {
	events := make([]*TransactionEvent, 0, len(txns))
	for _, txn := range txns {
		events = append(events, FromTransaction(w, txn))
	}
	return events
}

// Subject returns the subject an event for symbol and address is published to.
func Subject(symbol, address string) string {
	return "txns." + subjectToken(strings.ToUpper(symbol)) + "." + subjectToken(address)
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// subjectToken keeps a value from splitting or wildcarding the subject.
func subjectToken(s string) string {
	return subjectReplacer.Replace(s)
}
