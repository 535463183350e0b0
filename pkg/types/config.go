package types

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// Mode selects how much of a block the indexer materializes.
type Mode int

const (
	// ModeFetcher records only the block-hash entry for each block.
	ModeFetcher Mode = iota
	// ModeIndexer records the full entry set (txids, spent outputs, script hashes).
	ModeIndexer
)

// Network identifies the Bitcoin network being indexed.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
	Signet  Network = "signet"
)

// ChainParams maps the network to btcd chain parameters.
func (n Network) ChainParams() *chaincfg.Params {
	switch n {
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	case Signet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// ActivationHeights holds the first height at which each protocol rule applies.
type ActivationHeights struct {
	MultisigAddresses  uint32
	P2SHAddresses      uint32
	P2SHDispensers     uint32
	Segwit             uint32
	CorrectSegwitTxids uint32
	FixIsSegwit        uint32
	TaprootSupport     uint32
}

// Config carries the immutable parse parameters. It is shared read-only
// across all parse goroutines.
type Config struct {
	Mode    Mode
	Network Network

	// Prefix is the meta-protocol magic expected at the front of every
	// decrypted data payload.
	Prefix []byte

	// AddressVersion and P2SHAddressVersion are the base58-check version
	// bytes prepended when deriving destination addresses.
	AddressVersion     []byte
	P2SHAddressVersion []byte

	// Unspendable is the sentinel destination that freezes further
	// destination accumulation once it is the sole destination.
	Unspendable string

	RPCAddress  string
	RPCUser     string
	RPCPassword string

	Heights ActivationHeights
}

// DefaultConfig returns a config for the given network with the standard
// protocol magic, address versions and unspendable sentinel. Activation
// heights default to zero (every rule active from genesis); indexers of
// historical chains overwrite Heights with the real activation schedule.
func DefaultConfig(network Network) Config {
	config := Config{
		Mode:        ModeIndexer,
		Network:     network,
		Prefix:      []byte("CNTRPRTY"),
		Unspendable: "1CounterpartyXXXXXXXXXXXXXXXUWLpVr",
	}
	params := network.ChainParams()
	config.AddressVersion = []byte{params.PubKeyHashAddrID}
	config.P2SHAddressVersion = []byte{params.ScriptHashAddrID}
	if network != Mainnet {
		config.Unspendable = "mvCounterpartyXXXXXXXXXXXXXXW24Hef"
	}
	return config
}

func (c *Config) MultisigEnabled(height uint32) bool {
	return height >= c.Heights.MultisigAddresses
}

func (c *Config) P2SHAddressSupported(height uint32) bool {
	return height >= c.Heights.P2SHAddresses
}

func (c *Config) P2SHDispensersSupported(height uint32) bool {
	return height >= c.Heights.P2SHDispensers
}

func (c *Config) SegwitSupported(height uint32) bool {
	return height >= c.Heights.Segwit
}

func (c *Config) CorrectSegwitTxidsEnabled(height uint32) bool {
	return height >= c.Heights.CorrectSegwitTxids
}

func (c *Config) FixIsSegwitEnabled(height uint32) bool {
	return height >= c.Heights.FixIsSegwit
}

func (c *Config) TaprootSupportEnabled(height uint32) bool {
	return height >= c.Heights.TaprootSupport
}
