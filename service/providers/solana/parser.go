package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// systemTransferInstruction is the System Program instruction index for Transfer.
const systemTransferInstruction = uint32(2)

// signatureToTransaction builds a Transaction from signature metadata only.
func signatureToTransaction(sig *rpc.TransactionSignature) Transaction {
	txn := Transaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
		Failed:    sig.Err != nil,
	}
	if sig.BlockTime != nil {
		txn.BlockTime = int64(*sig.BlockTime)
	}
	return txn
}

// parseTransaction decodes the System Program transfers of a fetched transaction.
func parseTransaction(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (Transaction, error) {
	txn := signatureToTransaction(sig)
	if txn.Failed || result == nil || result.Transaction == nil {
		return txn, nil
	}
	if result.Meta != nil && result.Meta.Err != nil {
		txn.Failed = true
		return txn, nil
	}
	if txn.BlockTime == 0 && result.BlockTime != nil {
		txn.BlockTime = int64(*result.BlockTime)
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return txn, fmt.Errorf("failed to decode transaction: %w", err)
	}

	keys := tx.Message.AccountKeys
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) || !keys[inst.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}
		transfer, err := parseSystemTransfer(inst, keys)
		if err != nil {
			continue
		}
		txn.Transfers = append(txn.Transfers, transfer)
	}
	return txn, nil
}

// parseSystemTransfer decodes a System Program Transfer instruction.
// Layout: [0..4] u32 instruction index, [4..12] u64 lamports.
// Accounts: [from, to].
func parseSystemTransfer(inst solana.CompiledInstruction, keys []solana.PublicKey) (Transfer, error) {
	if len(inst.Data) < 12 {
		return Transfer{}, fmt.Errorf("instruction data too short: %d bytes", len(inst.Data))
	}
	if kind := binary.LittleEndian.Uint32(inst.Data[0:4]); kind != systemTransferInstruction {
		return Transfer{}, fmt.Errorf("not a transfer instruction: type %d", kind)
	}
	if len(inst.Accounts) < 2 {
		return Transfer{}, fmt.Errorf("transfer instruction missing accounts")
	}
	from, to := int(inst.Accounts[0]), int(inst.Accounts[1])
	if from >= len(keys) || to >= len(keys) {
		return Transfer{}, fmt.Errorf("transfer account index out of bounds")
	}
	return Transfer{
		From:     keys[from].String(),
		To:       keys[to].String(),
		Lamports: binary.LittleEndian.Uint64(inst.Data[4:12]),
	}, nil
}
