package esplora

// Decimals is the number of satoshi per bitcoin expressed as a power of ten.
const Decimals = 8

// PageSize is the fixed number of confirmed transactions Esplora returns
// per /txs/chain page.
const PageSize = 25

// TxPage is the raw result of a confirmed transaction walk, newest first.
type TxPage struct {
	Transactions []Tx `json:"transactions"`
}

// Len reports the number of transactions fetched.
func (p *TxPage) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Transactions)
}

// Tx is an Esplora transaction with resolved previous outputs.
type Tx struct {
	TxID   string   `json:"txid"`
	Vin    []Input  `json:"vin"`
	Vout   []Output `json:"vout"`
	Fee    int64    `json:"fee"`
	Status Status   `json:"status"`
}

// Input spends a previous output.
type Input struct {
	TxID       string  `json:"txid"`
	Vout       uint32  `json:"vout"`
	Prevout    *Output `json:"prevout"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// Output is a transaction output. The address is empty for non-standard
// scripts such as OP_RETURN.
type Output struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address,omitempty"`
	Value               int64  `json:"value"`
}

// Status is the confirmation state of a transaction.
type Status struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

type addressStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int64 `json:"tx_count"`
}

type addressInfo struct {
	Address    string       `json:"address"`
	ChainStats addressStats `json:"chain_stats"`
}
