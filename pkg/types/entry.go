package types

import (
	"encoding/binary"
	"fmt"
)

// Index entry kind prefixes. The prefix is the first key byte so entries of
// one kind sort together in the store.
const (
	KindBlockAtHeightHasHash byte = iota + 1
	KindTxInBlockAtHeight
	KindBlockAtHeightSpentOutputInTx
	KindScriptHashHasOutputsInBlockAtHeight
)

// ToEntry is implemented by every index entry kind. The returned key and
// value are opaque to the emitter; the store persists them as-is.
type ToEntry interface {
	Entry() (key, value []byte)
}

// BlockAtHeightHasHash maps a height to the block hash seen there.
type BlockAtHeightHasHash struct {
	Height uint32
	Hash   [32]byte
}

func (e BlockAtHeightHasHash) Entry() ([]byte, []byte) {
	key := make([]byte, 5)
	key[0] = KindBlockAtHeightHasHash
	binary.BigEndian.PutUint32(key[1:], e.Height)
	value := make([]byte, 32)
	copy(value, e.Hash[:])
	return key, value
}

// BlockAtHeightHasHashFromEntry decodes the key/value pair back into the
// entry. Used by readers of the secondary index.
func BlockAtHeightHasHashFromEntry(key, value []byte) (BlockAtHeightHasHash, error) {
	if len(key) != 5 || key[0] != KindBlockAtHeightHasHash || len(value) != 32 {
		return BlockAtHeightHasHash{}, fmt.Errorf("malformed block-hash entry: key %d bytes, value %d bytes", len(key), len(value))
	}
	var e BlockAtHeightHasHash
	e.Height = binary.BigEndian.Uint32(key[1:])
	copy(e.Hash[:], value)
	return e, nil
}

// TxInBlockAtHeight maps a txid to the height of its containing block.
type TxInBlockAtHeight struct {
	TxID   [32]byte
	Height uint32
}

func (e TxInBlockAtHeight) Entry() ([]byte, []byte) {
	key := make([]byte, 33)
	key[0] = KindTxInBlockAtHeight
	copy(key[1:], e.TxID[:])
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, e.Height)
	return key, value
}

func TxInBlockAtHeightFromEntry(key, value []byte) (TxInBlockAtHeight, error) {
	if len(key) != 33 || key[0] != KindTxInBlockAtHeight || len(value) != 4 {
		return TxInBlockAtHeight{}, fmt.Errorf("malformed tx-height entry: key %d bytes, value %d bytes", len(key), len(value))
	}
	var e TxInBlockAtHeight
	copy(e.TxID[:], key[1:])
	e.Height = binary.BigEndian.Uint32(value)
	return e, nil
}

// BlockAtHeightSpentOutputInTx records that output (TxID, Vout) was spent by
// a transaction in the block at Height.
type BlockAtHeightSpentOutputInTx struct {
	TxID   [32]byte
	Vout   uint32
	Height uint32
}

func (e BlockAtHeightSpentOutputInTx) Entry() ([]byte, []byte) {
	key := make([]byte, 37)
	key[0] = KindBlockAtHeightSpentOutputInTx
	copy(key[1:], e.TxID[:])
	binary.BigEndian.PutUint32(key[33:], e.Vout)
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, e.Height)
	return key, value
}

func BlockAtHeightSpentOutputInTxFromEntry(key, value []byte) (BlockAtHeightSpentOutputInTx, error) {
	if len(key) != 37 || key[0] != KindBlockAtHeightSpentOutputInTx || len(value) != 4 {
		return BlockAtHeightSpentOutputInTx{}, fmt.Errorf("malformed spent-output entry: key %d bytes, value %d bytes", len(key), len(value))
	}
	var e BlockAtHeightSpentOutputInTx
	copy(e.TxID[:], key[1:33])
	e.Vout = binary.BigEndian.Uint32(key[33:])
	e.Height = binary.BigEndian.Uint32(value)
	return e, nil
}

// ScriptHashHasOutputsInBlockAtHeight records that at least one output in the
// block at Height pays to ScriptHash (HASH160 of the full script).
type ScriptHashHasOutputsInBlockAtHeight struct {
	ScriptHash [20]byte
	Height     uint32
}

func (e ScriptHashHasOutputsInBlockAtHeight) Entry() ([]byte, []byte) {
	key := make([]byte, 25)
	key[0] = KindScriptHashHasOutputsInBlockAtHeight
	copy(key[1:], e.ScriptHash[:])
	binary.BigEndian.PutUint32(key[21:], e.Height)
	return key, []byte{}
}

func ScriptHashHasOutputsInBlockAtHeightFromEntry(key, _ []byte) (ScriptHashHasOutputsInBlockAtHeight, error) {
	if len(key) != 25 || key[0] != KindScriptHashHasOutputsInBlockAtHeight {
		return ScriptHashHasOutputsInBlockAtHeight{}, fmt.Errorf("malformed script-hash entry: key %d bytes", len(key))
	}
	var e ScriptHashHasOutputsInBlockAtHeight
	copy(e.ScriptHash[:], key[1:21])
	e.Height = binary.BigEndian.Uint32(key[21:])
	return e, nil
}
