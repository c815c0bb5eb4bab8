package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/providers/esplora"
	"github.com/brojonat/chainfeed/service/providers/etherscan"
	"github.com/brojonat/chainfeed/service/providers/solana"
	"github.com/brojonat/chainfeed/service/providers/tron"
	"github.com/brojonat/chainfeed/service/providers/tzkt"
	"github.com/brojonat/chainfeed/service/providers/xrpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolana(t *testing.T) {
	w := ledger.NewWallet("So11111111111111111111111111111111111111112", "SOL")
	raw := &solana.History{Transactions: []solana.Transaction{
		{
			Signature: "in",
			BlockTime: 1700000000,
			Transfers: []solana.Transfer{{From: "peer", To: w.Address, Lamports: 500000000}},
		},
		{
			Signature: "out",
			BlockTime: 1700000100,
			Transfers: []solana.Transfer{
				{From: w.Address, To: "peer", Lamports: 1},
				{From: w.Address, To: "other", Lamports: 2},
			},
		},
		{Signature: "failed", BlockTime: 1700000200, Failed: true, Transfers: []solana.Transfer{{From: "a", To: w.Address, Lamports: 1}}},
		{Signature: "no-transfer", BlockTime: 1700000300},
		{Signature: "no-time", Transfers: []solana.Transfer{{From: "a", To: w.Address, Lamports: 1}}},
	}}

	res := Solana(raw, "devnet", w)

	require.Len(t, res.Transactions, 3)
	in := res.Transactions[0]
	assert.Equal(t, ledger.Inbound, in.TxType)
	assert.Equal(t, "0.5", in.Amount.String())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), in.Date)
	assert.Equal(t, "solana", in.Provider)
	assert.Equal(t, w.Address+"in:0:inbound-transaction", in.UniqueID)

	for i, want := range []struct{ to, amount string }{{"peer", "0.000000001"}, {"other", "0.000000002"}} {
		out := res.Transactions[i+1]
		assert.Equal(t, ledger.Outbound, out.TxType)
		assert.Equal(t, "out", out.TransactionID)
		assert.Equal(t, want.amount, out.Amount.String())
		require.NotNil(t, out.Destination)
		assert.Equal(t, want.to, *out.Destination)
	}
	assert.NotEqual(t, res.Transactions[1].UniqueID, res.Transactions[2].UniqueID)

	assert.Equal(t, 2, res.Filtered)
	assert.Len(t, res.Skipped, 1)
	assert.Zero(t, res.Duplicates)
}

// A signature that both pays out and receives reports each movement.
func TestSolana_MixedDirections(t *testing.T) {
	w := ledger.NewWallet("Wallet1111", "SOL")
	raw := &solana.History{Transactions: []solana.Transaction{{
		Signature: "sig1",
		BlockTime: 1700000000,
		Transfers: []solana.Transfer{
			{From: w.Address, To: "PeerA", Lamports: 3000000000},
			{From: "PeerB", To: w.Address, Lamports: 1000000000},
			{From: "PeerC", To: "PeerD", Lamports: 7},
		},
	}}}

	res := Solana(raw, "mainnet", w)

	require.Len(t, res.Transactions, 2)
	out, in := res.Transactions[0], res.Transactions[1]
	assert.Equal(t, ledger.Outbound, out.TxType)
	assert.Equal(t, "3", out.Amount.String())
	require.NotNil(t, out.Destination)
	assert.Equal(t, "PeerA", *out.Destination)
	assert.Equal(t, ledger.Inbound, in.TxType)
	assert.Equal(t, "1", in.Amount.String())
	require.NotNil(t, in.Source)
	assert.Equal(t, "PeerB", *in.Source)
	assert.NotEqual(t, out.UniqueID, in.UniqueID)
	assert.Zero(t, res.Duplicates)
	assert.Zero(t, res.Filtered)
}

func TestSolana_UnrelatedTransfersFiltered(t *testing.T) {
	w := ledger.NewWallet("Wallet1111", "SOL")
	raw := &solana.History{Transactions: []solana.Transaction{{
		Signature: "sig1",
		BlockTime: 1700000000,
		Transfers: []solana.Transfer{{From: "PeerA", To: "PeerB", Lamports: 5}},
	}}}

	res := Solana(raw, "mainnet", w)

	assert.Empty(t, res.Transactions)
	assert.Equal(t, 1, res.Filtered)
}

func TestSolana_Nil(t *testing.T) {
	res := Solana(nil, "mainnet", ledger.NewWallet("W1", "SOL"))
	assert.NotNil(t, res.Transactions)
	assert.Empty(t, res.Transactions)
}

func TestEtherscan(t *testing.T) {
	w := ledger.NewWallet("0xAbC0000000000000000000000000000000000001", "ETH")
	raw := &etherscan.TxList{Transactions: []etherscan.Transaction{
		{Hash: "0x1", TimeStamp: "1700000000", From: "0xpeer", To: "0xabc0000000000000000000000000000000000001", Value: "1500000000000000000", Input: "0x"},
		{Hash: "0x2", TimeStamp: "1700000001", From: w.Address, To: "0xpeer", Value: "1", Input: "0x", IsError: "1"},
		{Hash: "0x3", TimeStamp: "1700000002", From: w.Address, To: "0xcontract", Value: "0", Input: "0xa9059cbb"},
		{Hash: "0x4", TimeStamp: "1700000003", From: w.Address, To: "0xpeer", Value: "2000000000000000000"},
	}}

	res := Etherscan(raw, "mainnet", w)

	require.Len(t, res.Transactions, 2)
	assert.Equal(t, ledger.Inbound, res.Transactions[0].TxType)
	assert.Equal(t, "1.5", res.Transactions[0].Amount.String())
	assert.Equal(t, ledger.Outbound, res.Transactions[1].TxType)
	assert.Equal(t, "2", res.Transactions[1].Amount.String())
	assert.Equal(t, 2, res.Filtered)
}

// TzKT reports both legs of a batch under one hash; both must survive.
func TestTzkt_PerLegDuplicates(t *testing.T) {
	w := ledger.NewWallet("tz1wallet", "XTZ")
	raw := &tzkt.Operations{Items: []tzkt.Operation{
		{Type: "transaction", ID: 1, Hash: "ooHash", Timestamp: "2023-11-14T22:13:20Z", Status: "applied", Amount: 1000000,
			Sender: &tzkt.Alias{Address: "tz1wallet"}, Target: &tzkt.Alias{Address: "KT1contract"}},
		{Type: "transaction", ID: 2, Hash: "ooHash", Timestamp: "2023-11-14T22:13:20Z", Status: "applied", Amount: 250000,
			Sender: &tzkt.Alias{Address: "KT1contract"}, Target: &tzkt.Alias{Address: "tz1wallet"}},
		{Type: "transaction", ID: 3, Hash: "ooFailed", Timestamp: "2023-11-14T22:13:21Z", Status: "backtracked", Amount: 1},
		{Type: "reveal", ID: 4, Hash: "ooReveal", Timestamp: "2023-11-14T22:13:22Z", Status: "applied"},
	}}

	res := Tzkt(raw, "mainnet", w)

	require.Len(t, res.Transactions, 2)
	assert.NotEqual(t, res.Transactions[0].UniqueID, res.Transactions[1].UniqueID)
	assert.Equal(t, "ooHash", res.Transactions[0].TransactionID)
	assert.Equal(t, "ooHash", res.Transactions[1].TransactionID)
	assert.Equal(t, 2, res.Filtered)
	assert.Zero(t, res.Duplicates)
}

// Two payments from the wallet in one batch are both kept.
func TestTzkt_BatchSameDirection(t *testing.T) {
	w := ledger.NewWallet("tz1Wallet", "XTZ")
	raw := &tzkt.Operations{Items: []tzkt.Operation{
		{Type: "transaction", ID: 10, Hash: "opBatch", Timestamp: "2023-11-14T22:13:20Z", Status: "applied", Amount: 1000000,
			Sender: &tzkt.Alias{Address: "tz1Wallet"}, Target: &tzkt.Alias{Address: "tz1A"}},
		{Type: "transaction", ID: 11, Hash: "opBatch", Timestamp: "2023-11-14T22:13:20Z", Status: "applied", Amount: 2000000,
			Sender: &tzkt.Alias{Address: "tz1Wallet"}, Target: &tzkt.Alias{Address: "tz1B"}},
	}}

	res := Tzkt(raw, "mainnet", w)

	require.Len(t, res.Transactions, 2)
	assert.Zero(t, res.Duplicates)
	assert.Equal(t, "tz1WalletopBatch:10:outbound-transaction", res.Transactions[0].UniqueID)
	assert.Equal(t, "tz1WalletopBatch:11:outbound-transaction", res.Transactions[1].UniqueID)
	assert.Equal(t, "1", res.Transactions[0].Amount.String())
	assert.Equal(t, "2", res.Transactions[1].Amount.String())
	require.NotNil(t, res.Transactions[1].Destination)
	assert.Equal(t, "tz1B", *res.Transactions[1].Destination)

	again := Tzkt(raw, "mainnet", w)
	assert.Equal(t, res.Transactions, again.Transactions)
}

func TestXRPL(t *testing.T) {
	w := ledger.NewWallet("rWallet", "XRP")
	raw := &xrpl.AccountTx{Transactions: []xrpl.Entry{
		{
			Tx:   xrpl.Tx{Hash: "H1", TransactionType: "Payment", Account: "rPeer", Destination: "rWallet", Amount: json.RawMessage(`"2500000"`), Date: 753315200},
			Meta: xrpl.Meta{TransactionResult: "tesSUCCESS"},
		},
		{
			Tx:   xrpl.Tx{Hash: "H2", TransactionType: "Payment", Account: "rWallet", Destination: "rPeer", Amount: json.RawMessage(`{"currency":"USD","issuer":"rI","value":"5"}`), Date: 753315201},
			Meta: xrpl.Meta{TransactionResult: "tesSUCCESS"},
		},
		{
			Tx:   xrpl.Tx{Hash: "H3", TransactionType: "Payment", Account: "rWallet", Destination: "rPeer", Amount: json.RawMessage(`"1"`), Date: 753315202},
			Meta: xrpl.Meta{TransactionResult: "tecUNFUNDED_PAYMENT"},
		},
		{
			Tx:   xrpl.Tx{Hash: "H4", TransactionType: "TrustSet", Account: "rWallet", Date: 753315203},
			Meta: xrpl.Meta{TransactionResult: "tesSUCCESS"},
		},
	}}

	res := XRPL(raw, "mainnet", w)

	require.Len(t, res.Transactions, 1)
	txn := res.Transactions[0]
	assert.Equal(t, ledger.Inbound, txn.TxType)
	assert.Equal(t, "2.5", txn.Amount.String())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), txn.Date)
	assert.Equal(t, 3, res.Filtered)
}

func TestEsplora(t *testing.T) {
	w := ledger.NewWallet("bc1wallet", "BTC")
	confirmed := esplora.Status{Confirmed: true, BlockTime: 1700000000}
	raw := &esplora.TxPage{Transactions: []esplora.Tx{
		{
			TxID:   "recv",
			Status: confirmed,
			Vin:    []esplora.Input{{Prevout: &esplora.Output{ScriptPubKeyAddress: "bc1peer", Value: 200000}}},
			Vout: []esplora.Output{
				{ScriptPubKeyAddress: "bc1wallet", Value: 150000},
				{ScriptPubKeyAddress: "bc1peer", Value: 49000},
			},
		},
		{
			TxID:   "send",
			Status: esplora.Status{Confirmed: true, BlockTime: 1700000100},
			Vin:    []esplora.Input{{Prevout: &esplora.Output{ScriptPubKeyAddress: "bc1wallet", Value: 150000}}},
			Vout: []esplora.Output{
				{ScriptPubKeyAddress: "bc1merchant", Value: 100000},
				{ScriptPubKeyAddress: "bc1wallet", Value: 49000},
			},
		},
		{
			TxID:   "pending",
			Status: esplora.Status{Confirmed: false},
			Vout:   []esplora.Output{{ScriptPubKeyAddress: "bc1wallet", Value: 1}},
		},
		{
			TxID:   "coinbase",
			Status: esplora.Status{Confirmed: true, BlockTime: 1700000200},
			Vin:    []esplora.Input{{IsCoinbase: true}},
			Vout:   []esplora.Output{{ScriptPubKeyAddress: "bc1wallet", Value: 312500000}},
		},
	}}

	res := Esplora(raw, "mainnet", w)

	require.Len(t, res.Transactions, 3)
	recv, send, coinbase := res.Transactions[0], res.Transactions[1], res.Transactions[2]

	assert.Equal(t, ledger.Inbound, recv.TxType)
	assert.Equal(t, "0.0015", recv.Amount.String())
	require.NotNil(t, recv.Source)
	assert.Equal(t, "bc1peer", *recv.Source)

	assert.Equal(t, ledger.Outbound, send.TxType)
	assert.Equal(t, "0.001", send.Amount.String())
	require.NotNil(t, send.Destination)
	assert.Equal(t, "bc1merchant", *send.Destination)

	assert.Equal(t, ledger.Inbound, coinbase.TxType)
	assert.Nil(t, coinbase.Source)
	assert.Equal(t, "3.125", coinbase.Amount.String())

	assert.Equal(t, 1, res.Filtered)
}

func TestTron(t *testing.T) {
	w := ledger.NewWallet("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "TRX")
	transfer := func(id string, ts int64, ret string) tron.Transaction {
		value, _ := json.Marshal(tron.TransferValue{
			Amount:       2500000,
			OwnerAddress: "410000000000000000000000000000000000000001",
			ToAddress:    "41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
		})
		c := tron.Contract{Type: tron.TransferContractType}
		c.Parameter.Value = value
		tx := tron.Transaction{TxID: id, BlockTimestamp: ts, Ret: []tron.Result{{ContractRet: ret}}}
		tx.RawData.Contract = []tron.Contract{c}
		return tx
	}
	trigger := tron.Transaction{TxID: "trigger", BlockTimestamp: 1700000002000, Ret: []tron.Result{{ContractRet: "SUCCESS"}}}
	trigger.RawData.Contract = []tron.Contract{{Type: "TriggerSmartContract"}}

	raw := &tron.Transfers{Transactions: []tron.Transaction{
		transfer("ok", 1700000000000, "SUCCESS"),
		transfer("reverted", 1700000001000, "REVERT"),
		trigger,
	}}

	res := Tron(raw, "mainnet", w)

	require.Len(t, res.Transactions, 1)
	txn := res.Transactions[0]
	assert.Equal(t, ledger.Inbound, txn.TxType)
	assert.Equal(t, "2.5", txn.Amount.String())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), txn.Date)
	require.NotNil(t, txn.Destination)
	assert.Equal(t, w.Address, *txn.Destination)
	require.NotNil(t, txn.Source)
	assert.Equal(t, byte('T'), (*txn.Source)[0])
	assert.Equal(t, 2, res.Filtered)
}
