package etherscan

import "encoding/json"

// Decimals is the number of wei per ether expressed as a power of ten.
const Decimals = 18

// envelope is the Etherscan response wrapper. Result is a list on success
// and a string on error or for scalar actions such as balance.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// TxList is the raw result of an account txlist walk, oldest first.
type TxList struct {
	Transactions []Transaction `json:"transactions"`
}

// Len reports the number of transactions fetched.
func (l *TxList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Transactions)
}

// Transaction is one entry of the txlist action. Every field is a string on
// the wire, numbers included.
type Transaction struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Input           string `json:"input"`
	IsError         string `json:"isError"`
	TxReceiptStatus string `json:"txreceipt_status"`
	ContractAddress string `json:"contractAddress"`
	GasUsed         string `json:"gasUsed"`
	GasPrice        string `json:"gasPrice"`
}
