package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xcp-lens/pkg/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BatchClient talks JSON-RPC to bitcoind over HTTP basic auth. Single calls
// and batched calls share one connection pool; the client is safe for
// concurrent use.
type BatchClient struct {
	url      string
	user     string
	password string
	client   *http.Client
}

func NewBatchClient(url, user, password string) *BatchClient {
	return &BatchClient{
		url:      url,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *BatchClient) post(body interface{}) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("encode request: %v", err)}
	}
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(encoded))
	if err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("build request: %v", err)}
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("post %s: %v", c.url, err)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RPCError{Msg: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, c.url)}
	}
	return raw, nil
}

func (c *BatchClient) call(method string, params []interface{}, result interface{}) error {
	raw, err := c.post(rpcRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return &types.RPCError{Msg: fmt.Sprintf("decode %s response: %v", method, err)}
	}
	if resp.Error != nil {
		return &types.RPCError{Msg: fmt.Sprintf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)}
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return &types.RPCError{Msg: fmt.Sprintf("decode %s result: %v", method, err)}
	}
	return nil
}

// GetBlockHash resolves the hash of the block at the given height.
func (c *BatchClient) GetBlockHash(height uint32) (chainhash.Hash, error) {
	var hashStr string
	if err := c.call("getblockhash", []interface{}{height}, &hashStr); err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return chainhash.Hash{}, &types.RPCError{Msg: fmt.Sprintf("decode block hash %q: %v", hashStr, err)}
	}
	return *hash, nil
}

// GetBlock fetches a block by hash (verbosity 0) and consensus-decodes it.
func (c *BatchClient) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	var blockHex string
	if err := c.call("getblock", []interface{}{hash.String(), 0}, &blockHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(blockHex)
	if err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("decode block hex: %v", err)}
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("deserialize block %s: %v", hash, err)}
	}
	return block, nil
}

// GetBlockchainHeight reads the current chain height from
// getblockchaininfo.
func (c *BatchClient) GetBlockchainHeight() (uint32, error) {
	var info struct {
		Blocks uint32 `json:"blocks"`
	}
	if err := c.call("getblockchaininfo", []interface{}{}, &info); err != nil {
		return 0, err
	}
	return info.Blocks, nil
}

// GetTransactions resolves raw transactions by txid in a single batched
// request. A transaction bitcoind cannot find comes back as a nil element;
// only transport-level failures return an error.
func (c *BatchClient) GetTransactions(txids []chainhash.Hash) ([]*wire.MsgTx, error) {
	txs := make([]*wire.MsgTx, len(txids))
	if len(txids) == 0 {
		return txs, nil
	}
	batch := make([]rpcRequest, 0, len(txids))
	for i, txid := range txids {
		batch = append(batch, rpcRequest{
			Jsonrpc: "2.0",
			ID:      i,
			Method:  "getrawtransaction",
			Params:  []interface{}{txid.String(), 0},
		})
	}
	raw, err := c.post(batch)
	if err != nil {
		return nil, err
	}
	var responses []rpcResponse
	if err := json.Unmarshal(raw, &responses); err != nil {
		return nil, &types.RPCError{Msg: fmt.Sprintf("decode batch response: %v", err)}
	}
	for _, resp := range responses {
		if resp.ID < 0 || resp.ID >= len(txids) || resp.Error != nil {
			continue
		}
		var txHex string
		if err := json.Unmarshal(resp.Result, &txHex); err != nil {
			continue
		}
		rawTx, err := hex.DecodeString(txHex)
		if err != nil {
			continue
		}
		tx := &wire.MsgTx{}
		if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
			continue
		}
		txs[resp.ID] = tx
	}
	return txs, nil
}
