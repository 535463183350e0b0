package analyzer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

func netParams(network string) *chaincfg.Params {
	switch network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "signet":
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// ScriptToAddressLegacy encodes a witness-program script as a bech32
// address. Only witness version 0 is understood; this is the encoder used
// before taproot activation.
func ScriptToAddressLegacy(script []byte, network string) (string, error) {
	version, program, err := txscript.ExtractWitnessProgramInfo(script)
	if err != nil {
		return "", fmt.Errorf("not a witness program: %w", err)
	}
	if version != 0 {
		return "", fmt.Errorf("unsupported witness version %d", version)
	}
	return encodeWitnessV0(program, network)
}

// ScriptToAddress encodes a witness-program script as a bech32 or bech32m
// address, understanding witness versions 0 and 1.
func ScriptToAddress(script []byte, network string) (string, error) {
	version, program, err := txscript.ExtractWitnessProgramInfo(script)
	if err != nil {
		return "", fmt.Errorf("not a witness program: %w", err)
	}
	switch version {
	case 0:
		return encodeWitnessV0(program, network)
	case 1:
		if len(program) != 32 {
			return "", fmt.Errorf("invalid v1 witness program length %d", len(program))
		}
		addr, err := btcutil.NewAddressTaproot(program, netParams(network))
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	default:
		return "", fmt.Errorf("unsupported witness version %d", version)
	}
}

func encodeWitnessV0(program []byte, network string) (string, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch len(program) {
	case 20:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(program, netParams(network))
	case 32:
		addr, err = btcutil.NewAddressWitnessScriptHash(program, netParams(network))
	default:
		return "", fmt.Errorf("invalid v0 witness program length %d", len(program))
	}
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}
