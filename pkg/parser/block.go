package parser

import (
	"xcp-lens/pkg/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// GetEntries emits the secondary-index entries for a block in one pass:
// the block-hash entry first (the only one in fetcher mode), then per
// transaction its txid entry, one spent-output entry per input, and one
// script-hash entry per script hash on first occurrence in the block.
func GetEntries(block *wire.MsgBlock, mode types.Mode, height uint32) []types.ToEntry {
	hash := block.BlockHash()
	entries := []types.ToEntry{
		types.BlockAtHeightHasHash{Height: height, Hash: [32]byte(hash)},
	}
	if mode == types.ModeFetcher {
		return entries
	}
	seen := make(map[[20]byte]struct{})
	for _, tx := range block.Transactions {
		txid := tx.TxHash()
		entries = append(entries, types.TxInBlockAtHeight{
			TxID:   [32]byte(txid),
			Height: height,
		})
		for _, txIn := range tx.TxIn {
			entries = append(entries, types.BlockAtHeightSpentOutputInTx{
				TxID:   [32]byte(txIn.PreviousOutPoint.Hash),
				Vout:   txIn.PreviousOutPoint.Index,
				Height: height,
			})
		}
		for _, txOut := range tx.TxOut {
			var scriptHash [20]byte
			copy(scriptHash[:], btcutil.Hash160(txOut.PkScript))
			if _, dup := seen[scriptHash]; dup {
				continue
			}
			seen[scriptHash] = struct{}{}
			entries = append(entries, types.ScriptHashHasOutputsInBlockAtHeight{
				ScriptHash: scriptHash,
				Height:     height,
			})
		}
	}
	return entries
}

// ParseBlock normalizes a consensus-decoded block at the given height.
func ParseBlock(block *wire.MsgBlock, config *types.Config, height uint32, parseVouts bool) types.Block {
	return parseBlock(block, config, height, parseVouts, nil)
}

// ParseBlockWithSource is ParseBlock with an explicit tx source for input
// resolution.
func ParseBlockWithSource(block *wire.MsgBlock, config *types.Config, height uint32, parseVouts bool, source BatchTxSource) types.Block {
	return parseBlock(block, config, height, parseVouts, source)
}

func parseBlock(block *wire.MsgBlock, config *types.Config, height uint32, parseVouts bool, source BatchTxSource) types.Block {
	transactions := make([]types.Transaction, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		transactions = append(transactions, parseTransaction(tx, config, height, parseVouts, source))
	}
	return types.Block{
		Height:           height,
		Version:          block.Header.Version,
		HashPrev:         block.Header.PrevBlock.String(),
		HashMerkleRoot:   block.Header.MerkleRoot.String(),
		BlockTime:        uint32(block.Header.Timestamp.Unix()),
		Bits:             block.Header.Bits,
		Nonce:            block.Header.Nonce,
		BlockHash:        block.BlockHash().String(),
		TransactionCount: len(block.Transactions),
		Transactions:     transactions,
	}
}

// PrevBlockHash returns the previous-block hash from the header, for
// pipeline callers walking backwards.
func PrevBlockHash(block *wire.MsgBlock) chainhash.Hash {
	return block.Header.PrevBlock
}
