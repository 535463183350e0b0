package rpc

import (
	"xcp-lens/pkg/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BitcoinRpc is the block source the sync pipeline consumes.
type BitcoinRpc interface {
	GetBlockHash(height uint32) (chainhash.Hash, error)
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
	GetBlockchainHeight() (uint32, error)
}

type getBlockHashRequest struct {
	height uint32
	reply  chan getBlockHashResult
}

type getBlockHashResult struct {
	hash chainhash.Hash
	err  error
}

type getBlockRequest struct {
	hash  chainhash.Hash
	reply chan getBlockResult
}

type getBlockResult struct {
	block *wire.MsgBlock
	err   error
}

type getBlockchainHeightRequest struct {
	reply chan getBlockchainHeightResult
}

type getBlockchainHeightResult struct {
	height uint32
	err    error
}

type channels struct {
	getBlockHash        chan *getBlockHashRequest
	getBlock            chan *getBlockRequest
	getBlockchainHeight chan *getBlockchainHeightRequest
}

func newChannels(n int) channels {
	return channels{
		getBlockHash:        make(chan *getBlockHashRequest, n),
		getBlock:            make(chan *getBlockRequest, n),
		getBlockchainHeight: make(chan *getBlockchainHeightRequest, n),
	}
}

// BitcoinClient multiplexes the three RPC call types over a fixed worker
// pool. The struct is a cloneable handle: copies share the same request
// channels and stopper. Request channels are bounded to the worker count,
// so a full queue blocks the sender.
type BitcoinClient struct {
	n        int
	config   *types.Config
	stopper  *Stopper
	channels channels
}

func NewBitcoinClient(config *types.Config, stopper *Stopper, n int) *BitcoinClient {
	return &BitcoinClient{
		n:        n,
		config:   config,
		stopper:  stopper,
		channels: newChannels(n),
	}
}

// Start launches the worker pool. All workers share one RPC backend built
// from the config's credentials.
func (c *BitcoinClient) Start() *Pool {
	inner := NewBatchClient(c.config.RPCAddress, c.config.RPCUser, c.config.RPCPassword)
	return c.StartWithBackend(inner)
}

// StartWithBackend launches the worker pool against an explicit backend.
func (c *BitcoinClient) StartWithBackend(backend BitcoinRpc) *Pool {
	return NewWorkerPool("BitcoinClient", c.n, c.stopper, c.worker(backend))
}

func (c *BitcoinClient) worker(inner BitcoinRpc) func(*Stopper) error {
	return func(stopper *Stopper) error {
		for {
			select {
			case <-stopper.Done():
				return nil
			case req := <-c.channels.getBlockHash:
				hash, err := inner.GetBlockHash(req.height)
				req.reply <- getBlockHashResult{hash: hash, err: err}
			case req := <-c.channels.getBlock:
				block, err := inner.GetBlock(&req.hash)
				req.reply <- getBlockResult{block: block, err: err}
			case req := <-c.channels.getBlockchainHeight:
				height, err := inner.GetBlockchainHeight()
				req.reply <- getBlockchainHeightResult{height: height, err: err}
			}
		}
	}
}

func (c *BitcoinClient) GetBlockHash(height uint32) (chainhash.Hash, error) {
	reply := make(chan getBlockHashResult, 1)
	select {
	case c.channels.getBlockHash <- &getBlockHashRequest{height: height, reply: reply}:
	case <-c.stopper.Done():
		return chainhash.Hash{}, types.ErrStopped
	}
	select {
	case result := <-reply:
		return result.hash, result.err
	case <-c.stopper.Done():
		return chainhash.Hash{}, types.ErrStopped
	}
}

func (c *BitcoinClient) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	reply := make(chan getBlockResult, 1)
	select {
	case c.channels.getBlock <- &getBlockRequest{hash: *hash, reply: reply}:
	case <-c.stopper.Done():
		return nil, types.ErrStopped
	}
	select {
	case result := <-reply:
		return result.block, result.err
	case <-c.stopper.Done():
		return nil, types.ErrStopped
	}
}

func (c *BitcoinClient) GetBlockchainHeight() (uint32, error) {
	reply := make(chan getBlockchainHeightResult, 1)
	select {
	case c.channels.getBlockchainHeight <- &getBlockchainHeightRequest{reply: reply}:
	case <-c.stopper.Done():
		return 0, types.ErrStopped
	}
	select {
	case result := <-reply:
		return result.height, result.err
	case <-c.stopper.Done():
		return 0, types.ErrStopped
	}
}
