package xrpl

import "encoding/json"

// Decimals is the number of drops per XRP expressed as a power of ten.
const Decimals = 6

// AccountTx is the raw result of an account_tx walk, oldest first.
type AccountTx struct {
	Transactions []Entry `json:"transactions"`
}

// Len reports the number of ledger entries fetched.
func (a *AccountTx) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Transactions)
}

// Entry is one transaction with its metadata, as returned by account_tx
// under API version 1.
type Entry struct {
	Tx        Tx   `json:"tx"`
	Meta      Meta `json:"meta"`
	Validated bool `json:"validated"`
}

// Tx holds the transaction fields the pipeline reads.
type Tx struct {
	Hash            string          `json:"hash"`
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount,omitempty"`
	Fee             string          `json:"Fee"`
	Date            int64           `json:"date"` // seconds since the Ripple epoch
	DestinationTag  *uint32         `json:"DestinationTag,omitempty"`
}

// Meta is the transaction outcome.
type Meta struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount,omitempty"`
}

// Drops returns the XRP amount in drops actually delivered by the entry.
// Issued-currency amounts are JSON objects and report false.
func (e Entry) Drops() (string, bool) {
	if drops, ok := dropsOf(e.Meta.DeliveredAmount); ok {
		return drops, true
	}
	return dropsOf(e.Tx.Amount)
}

func dropsOf(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	// delivered_amount is "unavailable" for ledgers before 2014
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return s, true
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type accountTxParams struct {
	Account        string          `json:"account"`
	LedgerIndexMin int64           `json:"ledger_index_min"`
	LedgerIndexMax int64           `json:"ledger_index_max"`
	Limit          int             `json:"limit"`
	Forward        bool            `json:"forward"`
	Marker         json.RawMessage `json:"marker,omitempty"`
	APIVersion     int             `json:"api_version"`
}

type accountInfoParams struct {
	Account     string `json:"account"`
	LedgerIndex string `json:"ledger_index"`
	APIVersion  int    `json:"api_version"`
}

type rpcResponse[T any] struct {
	Result T `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type accountTxResult struct {
	rpcStatus
	Transactions []Entry         `json:"transactions"`
	Marker       json.RawMessage `json:"marker,omitempty"`
}

type accountInfoResult struct {
	rpcStatus
	AccountData struct {
		Balance string `json:"Balance"`
	} `json:"account_data"`
}
