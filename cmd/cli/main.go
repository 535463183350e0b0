package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"xcp-lens/pkg/parser"
	"xcp-lens/pkg/types"

	"github.com/btcsuite/btcd/wire"
)

func main() {
	var (
		network   = flag.String("network", "mainnet", "network: mainnet, testnet, regtest or signet")
		entries   = flag.Bool("entries", false, "print index entries instead of the parsed block")
		fetcher   = flag.Bool("fetcher", false, "fetcher mode: emit only the block-hash entry")
		noVouts   = flag.Bool("no-vouts", false, "skip the vout parse pass")
		rpcAddr   = flag.String("rpc", "", "bitcoind RPC address for input resolution")
		rpcUser   = flag.String("rpcuser", "", "bitcoind RPC user")
		rpcPass   = flag.String("rpcpassword", "", "bitcoind RPC password")
		heightArg = flag.Uint("height", 0, "block height")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fail("Usage: cli [flags] <block.hex>")
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fail(fmt.Sprintf("Failed to read block file: %v", err))
	}
	blockBytes, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		fail(fmt.Sprintf("Failed to decode block hex: %v", err))
	}

	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(blockBytes)); err != nil {
		fail(fmt.Sprintf("Failed to deserialize block: %v", err))
	}

	config := types.DefaultConfig(types.Network(*network))
	config.RPCAddress = *rpcAddr
	config.RPCUser = *rpcUser
	config.RPCPassword = *rpcPass
	height := uint32(*heightArg)

	if *entries {
		mode := types.ModeIndexer
		if *fetcher {
			mode = types.ModeFetcher
		}
		for _, entry := range parser.GetEntries(block, mode, height) {
			key, value := entry.Entry()
			fmt.Printf("%x %x\n", key, value)
		}
		return
	}

	parsed := parser.ParseBlock(block, &config, height, !*noVouts)
	output, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		fail(fmt.Sprintf("Failed to encode output: %v", err))
	}
	fmt.Println(string(output))
}

func fail(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	os.Exit(1)
}
