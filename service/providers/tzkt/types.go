package tzkt

// Decimals is the number of mutez per tez expressed as a power of ten.
const Decimals = 6

// Operations is the raw result of an account operations walk, oldest first.
// TzKT reports each leg of a batched or internal transfer as its own
// operation under the shared operation hash.
type Operations struct {
	Items []Operation `json:"items"`
}

// Len reports the number of operations fetched.
func (o *Operations) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Items)
}

// Operation is one entry of /v1/accounts/{address}/operations.
type Operation struct {
	Type      string  `json:"type"`
	ID        int64   `json:"id"`
	Level     int64   `json:"level"`
	Timestamp string  `json:"timestamp"`
	Hash      string  `json:"hash"`
	Sender    *Alias  `json:"sender,omitempty"`
	Target    *Alias  `json:"target,omitempty"`
	Amount    int64   `json:"amount"`
	Status    string  `json:"status"`
	Parameter *Params `json:"parameter,omitempty"`
}

// Alias is an account reference.
type Alias struct {
	Alias   string `json:"alias,omitempty"`
	Address string `json:"address"`
}

// Params is present when a transaction calls a contract entrypoint.
type Params struct {
	Entrypoint string `json:"entrypoint"`
}

// SenderAddress returns the sender, or "" when absent.
func (o Operation) SenderAddress() string {
	if o.Sender == nil {
		return ""
	}
	return o.Sender.Address
}

// TargetAddress returns the target, or "" when absent.
func (o Operation) TargetAddress() string {
	if o.Target == nil {
		return ""
	}
	return o.Target.Address
}
