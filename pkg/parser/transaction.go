package parser

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"

	"xcp-lens/pkg/rpc"
	"xcp-lens/pkg/types"
	"xcp-lens/pkg/utils"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// BatchTxSource resolves transactions by txid in one round trip. A missing
// transaction is returned as a nil element, not an error.
type BatchTxSource interface {
	GetTransactions(txids []chainhash.Hash) ([]*wire.MsgTx, error)
}

// The process-wide batch client used by ParseTransaction when no source is
// passed in. Lazily built from the config of the first transaction that
// needs input resolution; the nil check runs under the lock, so concurrent
// first users build it only once.
var (
	batchClientMu sync.Mutex
	batchClient   BatchTxSource
)

// SetBatchTxSource replaces the process-wide tx source. Pass nil to reset
// to lazy construction from config.
func SetBatchTxSource(source BatchTxSource) {
	batchClientMu.Lock()
	defer batchClientMu.Unlock()
	batchClient = source
}

func sharedBatchSource(config *types.Config) BatchTxSource {
	batchClientMu.Lock()
	defer batchClientMu.Unlock()
	if batchClient == nil {
		batchClient = rpc.NewBatchClient(config.RPCAddress, config.RPCUser, config.RPCPassword)
	}
	return batchClient
}

// ParseTransaction assembles the normalized record for one transaction,
// resolving inputs through the process-wide batch client.
func ParseTransaction(tx *wire.MsgTx, config *types.Config, height uint32, parseVouts bool) types.Transaction {
	return parseTransaction(tx, config, height, parseVouts, nil)
}

// ParseTransactionWithSource is ParseTransaction with an explicit tx source,
// for callers that thread their own handle instead of the process-wide one.
func ParseTransactionWithSource(tx *wire.MsgTx, config *types.Config, height uint32, parseVouts bool, source BatchTxSource) types.Transaction {
	return parseTransaction(tx, config, height, parseVouts, source)
}

func parseTransaction(tx *wire.MsgTx, config *types.Config, height uint32, parseVouts bool, source BatchTxSource) types.Transaction {
	var txBuf bytes.Buffer
	tx.Serialize(&txBuf)

	segwit := false
	vtxinwit := make([][]string, 0, len(tx.TxIn))
	for _, txIn := range tx.TxIn {
		witness := make([]string, 0, len(txIn.Witness))
		for _, item := range txIn.Witness {
			witness = append(witness, hex.EncodeToString(item))
		}
		if len(witness) > 0 {
			segwit = true
		}
		vtxinwit = append(vtxinwit, witness)
	}

	var key []byte
	if len(tx.TxIn) > 0 {
		key = utils.ReverseBytes(tx.TxIn[0].PreviousOutPoint.Hash[:])
	}

	vouts := make([]types.Vout, 0, len(tx.TxOut))
	for _, txOut := range tx.TxOut {
		vouts = append(vouts, types.Vout{
			Value:        txOut.Value,
			ScriptPubKey: append([]byte{}, txOut.PkScript...),
		})
	}

	txID := tx.TxHash().String()

	var (
		parsed     *types.ParsedVouts
		parseError string
		data       []byte
		isRevealTx bool
	)
	if !parseVouts {
		parseError = "Not Parsed"
	} else {
		if !config.MultisigEnabled(height) {
			parseError = "Multisig addresses are not enabled"
		} else {
			destinations := []string{}
			dispensers := []types.PotentialDispenser{}
			var (
				fee       int64
				btcAmount int64
				parseErr  error
			)
		parseLoop:
			for vi, txOut := range tx.TxOut {
				fee -= txOut.Value
				output, dispenser, err := ParseVout(config, key, height, txID, vi, txOut)
				if err != nil {
					parseErr = err
					break
				}
				dispensers = append(dispensers, dispenser)
				destination, isDestination := output.(Destination)
				switch {
				case isDestination && len(data) == 0 && !destinationsFrozen(destinations, config):
					destinations = append(destinations, string(destination))
					btcAmount += txOut.Value
				case isDestination:
					// A destination after data (or past the unspendable
					// sentinel) ends the parse pass.
					break parseLoop
				default:
					newData := output.(Data)
					if config.TaprootSupportEnabled(height) && bytes.Equal(newData, RevealSentinel) &&
						len(vtxinwit) > 0 && len(vtxinwit[0]) == 3 {
						witnessBytes, hexErr := hex.DecodeString(vtxinwit[0][1])
						if hexErr != nil {
							parseErr = &types.ParseVoutError{Msg: "Failed to decode taproot witness hex for tx: " + txID}
							continue
						}
						inscription, extractErr := ExtractDataFromWitness(witnessBytes)
						if extractErr != nil {
							parseErr = &types.ParseVoutError{Msg: fmt.Sprintf("Failed to extract data from witness script: %v for tx: %s", extractErr, txID)}
							continue
						}
						if len(inscription) > 0 {
							isRevealTx = true
							data = append(data, inscription...)
						}
					} else {
						data = append(data, newData...)
					}
				}
			}
			if parseErr != nil {
				parseError = parseErr.Error()
			} else {
				parsed = &types.ParsedVouts{
					Destinations:        destinations,
					BTCAmount:           btcAmount,
					Fee:                 fee,
					Data:                data,
					PotentialDispensers: dispensers,
					IsRevealTx:          isRevealTx,
				}
			}
		}
	}

	prevTxs := make([]*wire.MsgTx, len(tx.TxIn))
	var commitParentTxid chainhash.Hash
	commitParentVout := uint32(0)
	needResolve := len(data) > 0 || (parsed != nil && destinationsFrozen(parsed.Destinations, config))
	if needResolve {
		if source == nil {
			source = sharedBatchSource(config)
		}
		inputTxids := make([]chainhash.Hash, 0, len(tx.TxIn))
		for _, txIn := range tx.TxIn {
			inputTxids = append(inputTxids, txIn.PreviousOutPoint.Hash)
		}
		if fetched, err := source.GetTransactions(inputTxids); err == nil {
			prevTxs = fetched
		}
		if isRevealTx && len(prevTxs) > 0 && prevTxs[0] != nil && len(prevTxs[0].TxIn) > 0 {
			commitParentTxid = prevTxs[0].TxIn[0].PreviousOutPoint.Hash
			commitParentVout = prevTxs[0].TxIn[0].PreviousOutPoint.Index
			if fetched, err := source.GetTransactions([]chainhash.Hash{commitParentTxid}); err == nil && len(fetched) > 0 {
				prevTxs[0] = fetched[0]
			}
		}
	}

	vins := make([]types.Vin, 0, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		vin := types.Vin{
			Hash:      txIn.PreviousOutPoint.Hash.String(),
			N:         txIn.PreviousOutPoint.Index,
			Sequence:  txIn.Sequence,
			ScriptSig: append([]byte{}, txIn.SignatureScript...),
		}
		if i < len(prevTxs) && prevTxs[i] != nil {
			prevTx := prevTxs[i]
			prevTxID := prevTx.TxHash()
			voutIdx := txIn.PreviousOutPoint.Index
			if prevTxID == commitParentTxid {
				voutIdx = commitParentVout
			}
			if int(voutIdx) < len(prevTx.TxOut) {
				prevOut := prevTx.TxOut[voutIdx]
				isSegwit := prevTxID != prevTx.WitnessHash()
				if config.FixIsSegwitEnabled(height) {
					isSegwit = txscript.IsWitnessProgram(prevOut.PkScript)
				}
				vin.Info = &types.VinInfo{
					Value:        prevOut.Value,
					ScriptPubKey: append([]byte{}, prevOut.PkScript...),
					IsSegwit:     isSegwit,
				}
			}
		}
		vins = append(vins, vin)
	}

	txHash := txID
	if !(segwit && config.CorrectSegwitTxidsEnabled(height)) {
		txHash = chainhash.DoubleHashH(txBuf.Bytes()).String()
	}

	return types.Transaction{
		Version:     tx.Version,
		Segwit:      segwit,
		Coinbase:    isCoinbase(tx),
		LockTime:    tx.LockTime,
		TxID:        txID,
		TxHash:      txHash,
		Vtxinwit:    vtxinwit,
		Vin:         vins,
		Vout:        vouts,
		ParsedVouts: parsed,
		ParseError:  parseError,
	}
}

// destinationsFrozen reports destinations == [unspendable]: exactly the
// sentinel and nothing else.
func destinationsFrozen(destinations []string, config *types.Config) bool {
	return len(destinations) == 1 && destinations[0] == config.Unspendable
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == (chainhash.Hash{})
}
