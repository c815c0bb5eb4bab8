package normalize

import (
	"strconv"
	"strings"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/providers/esplora"
	"github.com/brojonat/chainfeed/service/providers/etherscan"
	"github.com/brojonat/chainfeed/service/providers/solana"
	"github.com/brojonat/chainfeed/service/providers/tron"
	"github.com/brojonat/chainfeed/service/providers/tzkt"
	"github.com/brojonat/chainfeed/service/providers/xrpl"
)

var (
	SolanaShape    = Shape{Provider: solana.ProviderName, Decimals: solana.Decimals, TimeUnit: Seconds, PerLegDuplicates: true}
	EtherscanShape = Shape{Provider: etherscan.ProviderName, Decimals: etherscan.Decimals, TimeUnit: Seconds}
	TzktShape      = Shape{Provider: tzkt.ProviderName, Decimals: tzkt.Decimals, TimeUnit: RFC3339, PerLegDuplicates: true}
	XRPLShape      = Shape{Provider: xrpl.ProviderName, Decimals: xrpl.Decimals, TimeUnit: RippleEpoch}
	EsploraShape   = Shape{Provider: esplora.ProviderName, Decimals: esplora.Decimals, TimeUnit: Seconds}
	TronShape      = Shape{Provider: tron.ProviderName, Decimals: tron.Decimals, TimeUnit: Milliseconds}
)

// Solana normalizes System Program transfers. Each transfer that moves SOL
// into or out of the wallet is its own leg under the signature, keyed by its
// position among the decoded transfers. A signature that moves none of the
// wallet's SOL is filtered.
func Solana(raw *solana.History, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, tx := range raw.Transactions {
			timestamp := strconv.FormatInt(tx.BlockTime, 10)
			legs := 0
			if !tx.Failed {
				for i, t := range tx.Transfers {
					if !strings.EqualFold(t.From, w.Address) && !strings.EqualFold(t.To, w.Address) {
						continue
					}
					records = append(records, Record{
						NativeID:    tx.Signature,
						LegID:       strconv.Itoa(i),
						Source:      t.From,
						Destination: t.To,
						Amount:      strconv.FormatUint(t.Lamports, 10),
						Timestamp:   timestamp,
						Transfer:    true,
					})
					legs++
				}
			}
			if legs == 0 {
				records = append(records, Record{NativeID: tx.Signature, Timestamp: timestamp})
			}
		}
	}
	return Run(SolanaShape, records, network, w)
}

// Etherscan normalizes plain ETH value transfers. Contract calls and failed
// transactions are filtered.
func Etherscan(raw *etherscan.TxList, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, tx := range raw.Transactions {
			records = append(records, Record{
				NativeID:    tx.Hash,
				Source:      tx.From,
				Destination: tx.To,
				Amount:      tx.Value,
				Timestamp:   tx.TimeStamp,
				Transfer:    tx.IsError != "1" && tx.To != "" && (tx.Input == "" || tx.Input == "0x"),
			})
		}
	}
	return Run(EtherscanShape, records, network, w)
}

// Tzkt normalizes applied transaction operations. Each leg of a batch is
// its own record under the shared operation hash, keyed by the operation id.
func Tzkt(raw *tzkt.Operations, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, op := range raw.Items {
			rec := Record{
				NativeID:    op.Hash,
				Source:      op.SenderAddress(),
				Destination: op.TargetAddress(),
				Amount:      strconv.FormatInt(op.Amount, 10),
				Timestamp:   op.Timestamp,
				Transfer:    op.Type == "transaction" && op.Status == "applied",
			}
			if op.ID != 0 {
				rec.LegID = strconv.FormatInt(op.ID, 10)
			}
			records = append(records, rec)
		}
	}
	return Run(TzktShape, records, network, w)
}

// XRPL normalizes successful XRP payments. Issued-currency payments and
// every other transaction type are filtered.
func XRPL(raw *xrpl.AccountTx, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, entry := range raw.Transactions {
			drops, isXRP := entry.Drops()
			records = append(records, Record{
				NativeID:    entry.Tx.Hash,
				Source:      entry.Tx.Account,
				Destination: entry.Tx.Destination,
				Amount:      drops,
				Timestamp:   strconv.FormatInt(entry.Tx.Date, 10),
				Transfer:    entry.Tx.TransactionType == "Payment" && entry.Meta.TransactionResult == "tesSUCCESS" && isXRP,
			})
		}
	}
	return Run(XRPLShape, records, network, w)
}

// Esplora reduces each confirmed transaction to the wallet's net leg. When
// the wallet funds any input the transaction is outbound for the value paid
// to other addresses; otherwise it is inbound for the value received.
func Esplora(raw *esplora.TxPage, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, tx := range raw.Transactions {
			rec := Record{
				NativeID:  tx.TxID,
				Timestamp: strconv.FormatInt(tx.Status.BlockTime, 10),
			}
			if tx.Status.Confirmed {
				rec.Source, rec.Destination, rec.Amount, rec.Transfer = esploraLeg(tx, w.Address)
			}
			records = append(records, rec)
		}
	}
	return Run(EsploraShape, records, network, w)
}

func esploraLeg(tx esplora.Tx, address string) (source, destination, amount string, involved bool) {
	var spent int64
	var firstInput string
	for _, in := range tx.Vin {
		if in.Prevout == nil {
			continue
		}
		if firstInput == "" {
			firstInput = in.Prevout.ScriptPubKeyAddress
		}
		if strings.EqualFold(in.Prevout.ScriptPubKeyAddress, address) {
			spent += in.Prevout.Value
		}
	}

	var received, paid int64
	var firstPayee string
	for _, out := range tx.Vout {
		if strings.EqualFold(out.ScriptPubKeyAddress, address) {
			received += out.Value
			continue
		}
		paid += out.Value
		if firstPayee == "" {
			firstPayee = out.ScriptPubKeyAddress
		}
	}

	switch {
	case spent > 0:
		return address, firstPayee, strconv.FormatInt(paid, 10), true
	case received > 0:
		return firstInput, address, strconv.FormatInt(received, 10), true
	default:
		return "", "", "", false
	}
}

// Tron normalizes successful native TRX transfers. Addresses are reported
// in base58check form.
func Tron(raw *tron.Transfers, network string, w ledger.Wallet) Result {
	records := make([]Record, 0, raw.Len())
	if raw != nil {
		for _, tx := range raw.Transactions {
			rec := Record{
				NativeID:  tx.TxID,
				Timestamp: strconv.FormatInt(tx.BlockTimestamp, 10),
			}
			if v, ok := tx.Transfer(); ok && tx.Succeeded() {
				rec.Source = tron.ToBase58(v.OwnerAddress)
				rec.Destination = tron.ToBase58(v.ToAddress)
				rec.Amount = strconv.FormatInt(v.Amount, 10)
				rec.Transfer = true
			}
			records = append(records, rec)
		}
	}
	return Run(TronShape, records, network, w)
}
