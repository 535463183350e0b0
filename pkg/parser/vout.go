package parser

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"xcp-lens/pkg/analyzer"
	"xcp-lens/pkg/types"
	"xcp-lens/pkg/utils"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// RevealSentinel is the literal OP_RETURN payload that marks a taproot
// reveal transaction; the real payload lives in the witness of input 0.
var RevealSentinel = []byte("CNTRPRTY")

// ParseOutput is the decoded meaning of one output: either an address the
// meta-protocol pays to, or a chunk of protocol data.
type ParseOutput interface {
	isParseOutput()
}

// Destination is an address (or multisig destination string) an output
// pays to.
type Destination string

// Data is a reassembled chunk of meta-protocol payload.
type Data []byte

func (Destination) isParseOutput() {}
func (Data) isParseOutput()        {}

func parseVoutErrorf(what, txid string, vi int) error {
	return &types.ParseVoutError{
		Msg: "Encountered invalid " + what + " script | tx: " + txid + ", vout: " + strconv.Itoa(vi),
	}
}

// ParseVout decodes a single output at the given height. On success it
// returns the decoded output and the dispenser annotation for this slot;
// on failure a ParseVoutError.
func ParseVout(config *types.Config, key []byte, height uint32, txid string, vi int, vout *wire.TxOut) (ParseOutput, types.PotentialDispenser, error) {
	value := vout.Value
	script := vout.PkScript
	instrs, ok := analyzer.ParseInstructions(script)

	switch {
	case analyzer.IsOpReturn(script):
		if pb, matched := analyzer.OpReturnPayload(instrs, ok); matched {
			if config.TaprootSupportEnabled(height) && bytes.Equal(pb, RevealSentinel) {
				return Data(append([]byte{}, pb...)), types.PotentialDispenser{}, nil
			}
			decrypted := utils.ARC4Decrypt(key, pb)
			if bytes.HasPrefix(decrypted, config.Prefix) {
				return Data(decrypted[len(config.Prefix):]), types.PotentialDispenser{}, nil
			}
		}
		return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_RETURN", txid, vi)

	case analyzer.EndsWithCheckSig(instrs, ok):
		if len(instrs) < 3 {
			return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_CHECKSIG", txid, vi)
		}
		pb := analyzer.CheckSigPayload(instrs)
		decrypted := utils.ARC4Decrypt(key, pb)
		if len(decrypted) >= len(config.Prefix)+1 && bytes.Equal(decrypted[1:1+len(config.Prefix)], config.Prefix) {
			dataLen := int(decrypted[0])
			if dataLen > len(decrypted)-1 || dataLen < len(config.Prefix) {
				return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_CHECKSIG", txid, vi)
			}
			data := decrypted[1 : 1+dataLen]
			return Data(data[len(config.Prefix):]), types.PotentialDispenser{Value: &value}, nil
		}
		// The raw payload is a public key. The historical derivation skips
		// HASH160 and base58-encodes the key bytes directly.
		destination := utils.B58Encode(concat(config.AddressVersion, pb))
		return Destination(destination), types.PotentialDispenser{Destination: &destination, Value: &value}, nil

	case analyzer.EndsWithCheckMultiSig(instrs, ok):
		sigsRequired, chunks, matched := analyzer.MultisigScript(instrs, ok)
		if !matched {
			return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_MULTISIG", txid, vi)
		}
		var encBytes []byte
		for _, chunk := range chunks[:len(chunks)-1] {
			// No data in the last pubkey.
			if len(chunk) < 2 {
				return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_MULTISIG", txid, vi)
			}
			// Skip sign byte and nonce byte.
			encBytes = append(encBytes, chunk[1:len(chunk)-1]...)
		}
		decrypted := utils.ARC4Decrypt(key, encBytes)
		if len(decrypted) >= len(config.Prefix)+1 && bytes.Equal(decrypted[1:1+len(config.Prefix)], config.Prefix) {
			chunkLen := min(int(decrypted[0]), len(decrypted)-1)
			if chunkLen < len(config.Prefix) {
				return nil, types.PotentialDispenser{}, parseVoutErrorf("OP_MULTISIG", txid, vi)
			}
			chunk := decrypted[1 : 1+chunkLen]
			return Data(chunk[len(config.Prefix):]), types.PotentialDispenser{Value: &value}, nil
		}
		// Every collected slot contributes an address, the sign slot
		// included.
		pubKeyHashes := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			pubKeyHashes = append(pubKeyHashes, utils.B58Encode(concat(config.AddressVersion, btcutil.Hash160(chunk))))
		}
		sort.Strings(pubKeyHashes)
		parts := append([]string{strconv.Itoa(sigsRequired)}, pubKeyHashes...)
		parts = append(parts, strconv.Itoa(len(pubKeyHashes)))
		destination := strings.Join(parts, "_")
		return Destination(destination), types.PotentialDispenser{Destination: &destination, Value: &value}, nil

	default:
		if hash, isP2SH := analyzer.P2SHHash(instrs, ok); isP2SH && config.P2SHAddressSupported(height) {
			destination := utils.B58Encode(concat(config.P2SHAddressVersion, hash))
			dispenser := types.PotentialDispenser{}
			if config.P2SHDispensersSupported(height) {
				dispenser = types.PotentialDispenser{Destination: &destination, Value: &value}
			}
			return Destination(destination), dispenser, nil
		}

		segwit := (config.SegwitSupported(height) && analyzer.IsValidSegwitScriptLegacy(instrs)) ||
			(config.TaprootSupportEnabled(height) && analyzer.IsValidSegwitScript(instrs)) ||
			(config.TaprootSupportEnabled(height) && analyzer.IsPayToTaproot(script))
		if segwit {
			var (
				destination string
				err         error
			)
			if config.TaprootSupportEnabled(height) {
				destination, err = analyzer.ScriptToAddress(script, string(config.Network))
			} else {
				destination, err = analyzer.ScriptToAddressLegacy(script, string(config.Network))
			}
			if err != nil {
				return nil, types.PotentialDispenser{}, &types.ParseVoutError{Msg: "Segwit script to address failed: " + err.Error()}
			}
			dispenser := types.PotentialDispenser{}
			if config.CorrectSegwitTxidsEnabled(height) {
				dispenser = types.PotentialDispenser{Destination: &destination, Value: &value}
			}
			return Destination(destination), dispenser, nil
		}

		return nil, types.PotentialDispenser{}, &types.ParseVoutError{
			Msg: "Unrecognized output type | tx: " + txid + ", vout: " + strconv.Itoa(vi),
		}
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
