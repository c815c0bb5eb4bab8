package solana

// Decimals is the number of lamports per SOL expressed as a power of ten.
const Decimals = 9

// History is the raw result of a Solana transaction history fetch: one entry
// per signature, newest first, as returned by getSignaturesForAddress.
type History struct {
	Transactions []Transaction `json:"transactions"`
}

// Len reports the number of signatures fetched.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Transactions)
}

// Transaction is one signature with the System Program transfers decoded
// from its instructions.
type Transaction struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime int64      `json:"block_time"` // unix seconds, 0 when the node did not report it
	Failed    bool       `json:"failed"`
	Transfers []Transfer `json:"transfers"`
}

// Transfer is a decoded System Program Transfer instruction.
type Transfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
}
