package analyzer

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
)

// Instruction is one decoded script instruction: a data push (with its
// payload) or a bare opcode.
type Instruction struct {
	Opcode byte
	Data   []byte
}

// IsPush reports whether the instruction pushes a byte string. OP_0 counts
// as an empty push; OP_1..OP_16 do not.
func (in Instruction) IsPush() bool {
	return in.Opcode <= txscript.OP_PUSHDATA4
}

// ParseInstructions tokenizes a script. ok is false when the script ends in
// a malformed push; instrs then holds the instructions decoded before the
// failure. Pattern matches over the whole script must require ok, checks of
// a leading instruction must not.
func ParseInstructions(script []byte) (instrs []Instruction, ok bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		var data []byte
		if tokenizer.Opcode() <= txscript.OP_PUSHDATA4 {
			data = append([]byte{}, tokenizer.Data()...)
		}
		instrs = append(instrs, Instruction{Opcode: tokenizer.Opcode(), Data: data})
	}
	return instrs, tokenizer.Err() == nil
}

// IsOpReturn reports whether the script starts with OP_RETURN.
func IsOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

// OpReturnPayload extracts the single pushed byte string of an
// [OP_RETURN, PUSH] script. Any other shape returns false.
func OpReturnPayload(instrs []Instruction, ok bool) ([]byte, bool) {
	if !ok || len(instrs) != 2 || instrs[0].Opcode != txscript.OP_RETURN || !instrs[1].IsPush() {
		return nil, false
	}
	return instrs[1].Data, true
}

// EndsWithCheckSig reports whether the script's final instruction is
// OP_CHECKSIG.
func EndsWithCheckSig(instrs []Instruction, ok bool) bool {
	return ok && len(instrs) > 0 && instrs[len(instrs)-1].Opcode == txscript.OP_CHECKSIG
}

// EndsWithCheckMultiSig reports whether the script's final instruction is
// OP_CHECKMULTISIG.
func EndsWithCheckMultiSig(instrs []Instruction, ok bool) bool {
	return ok && len(instrs) > 0 && instrs[len(instrs)-1].Opcode == txscript.OP_CHECKMULTISIG
}

// CheckSigPayload extracts the payload byte string from the third
// instruction of a CHECKSIG-terminated script: a push supplies its bytes,
// OP_1 supplies [0x01], any other opcode supplies its raw byte.
func CheckSigPayload(instrs []Instruction) []byte {
	in := instrs[2]
	switch {
	case in.Opcode == txscript.OP_1:
		return []byte{1}
	case in.IsPush():
		return in.Data
	default:
		return []byte{in.Opcode}
	}
}

// MultisigScript matches a CHECKMULTISIG-terminated script against the
// recognized bare-multisig layouts. It returns the advertised signature
// count and the pubkey slots that may carry data (slots 1..n-1; slot 0 and
// the trailing count never do). The OP_3/OP_2 layout advertises more
// signatures than pubkeys; it is kept because historical transactions used
// it.
func MultisigScript(instrs []Instruction, ok bool) (sigsRequired int, chunks [][]byte, matched bool) {
	if !ok {
		return 0, nil, false
	}
	push := func(i int) bool { return instrs[i].IsPush() }
	op := func(i int, opcode byte) bool {
		return !instrs[i].IsPush() && instrs[i].Opcode == opcode
	}
	collect := func(from, to int) [][]byte {
		var out [][]byte
		for i := from; i <= to; i++ {
			out = append(out, instrs[i].Data)
		}
		return out
	}

	switch len(instrs) {
	case 5:
		if !op(4, txscript.OP_CHECKMULTISIG) || !push(1) || !push(2) {
			return 0, nil, false
		}
		switch {
		case push(0) && push(3):
			return 1, collect(1, 2), true
		case op(0, txscript.OP_1) && op(3, txscript.OP_2):
			return 1, collect(1, 2), true
		case op(0, txscript.OP_2) && op(3, txscript.OP_2):
			return 2, collect(1, 2), true
		case op(0, txscript.OP_3) && op(3, txscript.OP_2):
			return 3, collect(1, 2), true
		}
	case 6:
		if !op(5, txscript.OP_CHECKMULTISIG) || !push(1) || !push(2) || !push(3) {
			return 0, nil, false
		}
		switch {
		case op(0, txscript.OP_1) && op(4, txscript.OP_3):
			return 1, collect(1, 3), true
		case push(0) && push(4):
			return 2, collect(1, 3), true
		case op(0, txscript.OP_2) && op(4, txscript.OP_3):
			return 2, collect(1, 3), true
		case op(0, txscript.OP_3) && op(4, txscript.OP_3):
			return 3, collect(1, 3), true
		}
	}
	return 0, nil, false
}

// P2SHHash extracts the 20-byte script hash of an
// [OP_HASH160, PUSH(20), OP_EQUAL] script.
func P2SHHash(instrs []Instruction, ok bool) ([]byte, bool) {
	if !ok || len(instrs) != 3 {
		return nil, false
	}
	if instrs[0].IsPush() || instrs[0].Opcode != txscript.OP_HASH160 {
		return nil, false
	}
	if !instrs[1].IsPush() || len(instrs[1].Data) != 20 {
		return nil, false
	}
	if instrs[2].IsPush() || instrs[2].Opcode != txscript.OP_EQUAL {
		return nil, false
	}
	return instrs[1].Data, true
}

// IsValidSegwitScriptLegacy reports the pre-taproot segwit test: the first
// instruction is an empty push. Only the leading instruction is examined.
func IsValidSegwitScriptLegacy(instrs []Instruction) bool {
	return len(instrs) > 0 && instrs[0].IsPush() && len(instrs[0].Data) == 0
}

// IsValidSegwitScript is the taproot-era variant: the first instruction is
// an empty push or OP_1.
func IsValidSegwitScript(instrs []Instruction) bool {
	if len(instrs) == 0 {
		return false
	}
	if instrs[0].IsPush() {
		return len(instrs[0].Data) == 0
	}
	return instrs[0].Opcode == txscript.OP_1
}

// IsPayToTaproot reports the standard OP_1 PUSH(32) test.
func IsPayToTaproot(script []byte) bool {
	return txscript.IsPayToTaproot(script)
}

// EnvelopeOrdMarker is the push that opens an ord inscription envelope.
var EnvelopeOrdMarker = []byte("ord")

// IsEnvelopeScript reports whether the script has the inscription envelope
// frame: an empty leading push (or OP_0), OP_IF second, OP_CHECKSIG last.
func IsEnvelopeScript(instrs []Instruction, ok bool) bool {
	if !ok || len(instrs) < 5 {
		return false
	}
	first := instrs[0]
	if !(first.IsPush() && len(first.Data) == 0) {
		return false
	}
	if instrs[1].IsPush() || instrs[1].Opcode != txscript.OP_IF {
		return false
	}
	last := instrs[len(instrs)-1]
	return !last.IsPush() && last.Opcode == txscript.OP_CHECKSIG
}

// IsOrdEnvelope reports whether an envelope script is an ord inscription
// carrying the metaprotocol tag: instruction 2 pushes "ord" and instruction
// 3 pushes the single byte 0x07.
func IsOrdEnvelope(instrs []Instruction) bool {
	if len(instrs) < 7 {
		return false
	}
	if !instrs[2].IsPush() || !bytes.Equal(instrs[2].Data, EnvelopeOrdMarker) {
		return false
	}
	return instrs[3].IsPush() && len(instrs[3].Data) == 1 && instrs[3].Data[0] == 7
}
