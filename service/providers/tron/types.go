package tron

import "encoding/json"

// Decimals is the number of sun per TRX expressed as a power of ten.
const Decimals = 6

// TransferContractType is the contract type of a native TRX transfer.
const TransferContractType = "TransferContract"

// Transfers is the raw result of an account transactions walk, oldest first.
type Transfers struct {
	Transactions []Transaction `json:"transactions"`
}

// Len reports the number of transactions fetched.
func (t *Transfers) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Transactions)
}

// Transaction is one entry of /v1/accounts/{address}/transactions.
type Transaction struct {
	TxID           string   `json:"txID"`
	BlockNumber    int64    `json:"blockNumber"`
	BlockTimestamp int64    `json:"block_timestamp"` // unix milliseconds
	RawData        RawData  `json:"raw_data"`
	Ret            []Result `json:"ret"`
}

// RawData holds the contracts a transaction executes.
type RawData struct {
	Contract []Contract `json:"contract"`
}

// Contract is one contract call. Parameter.Value is decoded according to Type.
type Contract struct {
	Type      string `json:"type"`
	Parameter struct {
		Value   json.RawMessage `json:"value"`
		TypeURL string          `json:"type_url"`
	} `json:"parameter"`
}

// TransferValue is the parameter of a TransferContract. Addresses are hex
// encoded with the 0x41 network prefix.
type TransferValue struct {
	Amount       int64  `json:"amount"`
	OwnerAddress string `json:"owner_address"`
	ToAddress    string `json:"to_address"`
}

// Result is the execution outcome of a contract.
type Result struct {
	ContractRet string `json:"contractRet"`
}

// Succeeded reports whether every contract executed successfully.
func (t Transaction) Succeeded() bool {
	if len(t.Ret) == 0 {
		return false
	}
	for _, r := range t.Ret {
		if r.ContractRet != "SUCCESS" {
			return false
		}
	}
	return true
}

// Transfer returns the native TRX transfer carried by the transaction, if any.
func (t Transaction) Transfer() (TransferValue, bool) {
	for _, c := range t.RawData.Contract {
		if c.Type != TransferContractType {
			continue
		}
		var v TransferValue
		if err := json.Unmarshal(c.Parameter.Value, &v); err != nil {
			return TransferValue{}, false
		}
		return v, true
	}
	return TransferValue{}, false
}

type meta struct {
	At          int64  `json:"at"`
	Fingerprint string `json:"fingerprint,omitempty"`
	PageSize    int    `json:"page_size"`
}

type envelope[T any] struct {
	Data    []T    `json:"data"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Meta    meta   `json:"meta"`
}

type account struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}
