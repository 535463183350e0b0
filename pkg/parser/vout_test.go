package parser

import (
	"bytes"
	"strings"
	"testing"

	"xcp-lens/pkg/types"
	"xcp-lens/pkg/utils"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func testConfig(t *testing.T) *types.Config {
	t.Helper()
	config := types.DefaultConfig(types.Regtest)
	return &config
}

func mustScript(t *testing.T, builder *txscript.ScriptBuilder) []byte {
	t.Helper()
	script, err := builder.Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	return script
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func txOut(value int64, script []byte) *wire.TxOut {
	return &wire.TxOut{Value: value, PkScript: script}
}

func TestParseVoutOpReturnWithMagic(t *testing.T) {
	config := testConfig(t)
	key := testKey()
	encrypted := utils.ARC4Decrypt(key, []byte("CNTRPRTYHELLO"))
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).AddData(encrypted))

	output, dispenser, err := ParseVout(config, key, 100, "aa", 0, txOut(0, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	data, isData := output.(Data)
	if !isData || !bytes.Equal(data, []byte("HELLO")) {
		t.Fatalf("output = %#v, want Data(HELLO)", output)
	}
	if dispenser.Destination != nil || dispenser.Value != nil {
		t.Fatalf("dispenser = %+v, want empty", dispenser)
	}
}

func TestParseVoutOpReturnWrongPrefix(t *testing.T) {
	config := testConfig(t)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).AddData([]byte("unrelated data")))
	_, _, err := ParseVout(config, testKey(), 100, "aa", 3, txOut(0, script))
	if err == nil || !strings.Contains(err.Error(), "invalid OP_RETURN script") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "vout: 3") {
		t.Fatalf("error lacks vout index: %v", err)
	}
}

func TestParseVoutRevealSentinel(t *testing.T) {
	config := testConfig(t)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).AddData([]byte("CNTRPRTY")))

	output, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if data, isData := output.(Data); !isData || !bytes.Equal(data, RevealSentinel) {
		t.Fatalf("output = %#v, want sentinel", output)
	}

	// Before taproot activation the raw sentinel is just an undecryptable
	// OP_RETURN payload.
	config.Heights.TaprootSupport = 1000
	if _, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script)); err == nil {
		t.Fatal("sentinel accepted before taproot activation")
	}
}

func TestParseVoutCheckSigData(t *testing.T) {
	config := testConfig(t)
	key := testKey()
	payload := []byte("PAYLOAD")
	plaintext := append([]byte{byte(len(config.Prefix) + len(payload))}, config.Prefix...)
	plaintext = append(plaintext, payload...)
	encrypted := utils.ARC4Decrypt(key, plaintext)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(encrypted).AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG))

	output, dispenser, err := ParseVout(config, key, 100, "aa", 0, txOut(7000, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if data, isData := output.(Data); !isData || !bytes.Equal(data, payload) {
		t.Fatalf("output = %#v, want Data(%q)", output, payload)
	}
	if dispenser.Destination != nil {
		t.Fatal("data output carries a dispenser destination")
	}
	if dispenser.Value == nil || *dispenser.Value != 7000 {
		t.Fatalf("dispenser value = %v, want 7000", dispenser.Value)
	}
}

func TestParseVoutCheckSigDestination(t *testing.T) {
	config := testConfig(t)
	key := testKey()
	hash := bytes.Repeat([]byte{0x9d}, 20)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(hash).AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG))

	output, dispenser, err := ParseVout(config, key, 100, "aa", 0, txOut(5000, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	want := utils.B58Encode(append(append([]byte{}, config.AddressVersion...), hash...))
	destination, isDestination := output.(Destination)
	if !isDestination || string(destination) != want {
		t.Fatalf("output = %#v, want Destination(%s)", output, want)
	}
	if dispenser.Destination == nil || *dispenser.Destination != want {
		t.Fatalf("dispenser destination = %v", dispenser.Destination)
	}
	if dispenser.Value == nil || *dispenser.Value != 5000 {
		t.Fatalf("dispenser value = %v", dispenser.Value)
	}
}

func TestParseVoutBareSigOpCheckSigTooShort(t *testing.T) {
	config := testConfig(t)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddData(bytes.Repeat([]byte{0x02}, 33)).AddOp(txscript.OP_CHECKSIG))
	_, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script))
	if err == nil || !strings.Contains(err.Error(), "invalid OP_CHECKSIG script") {
		t.Fatalf("err = %v", err)
	}
}

func multisigPubkey(middle []byte) []byte {
	pk := make([]byte, 0, len(middle)+2)
	pk = append(pk, 0x02)
	pk = append(pk, middle...)
	return append(pk, 0xff)
}

func TestParseVoutMultisigData(t *testing.T) {
	config := testConfig(t)
	key := testKey()
	payload := []byte("MULTISIGDATA")
	plaintext := append([]byte{byte(len(config.Prefix) + len(payload))}, config.Prefix...)
	plaintext = append(plaintext, payload...)
	encrypted := utils.ARC4Decrypt(key, plaintext)

	half := len(encrypted) / 2
	pk1 := multisigPubkey(encrypted[:half])
	pk2 := multisigPubkey(encrypted[half:])
	pk3 := bytes.Repeat([]byte{0x03}, 33)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).AddData(pk1).AddData(pk2).AddData(pk3).AddOp(txscript.OP_3).
		AddOp(txscript.OP_CHECKMULTISIG))

	output, dispenser, err := ParseVout(config, key, 100, "aa", 0, txOut(780, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if data, isData := output.(Data); !isData || !bytes.Equal(data, payload) {
		t.Fatalf("output = %#v, want Data(%q)", output, payload)
	}
	if dispenser.Destination != nil || dispenser.Value == nil || *dispenser.Value != 780 {
		t.Fatalf("dispenser = %+v", dispenser)
	}
}

func compressedPubkey(t *testing.T, seed byte) []byte {
	t.Helper()
	_, pub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return pub.SerializeCompressed()
}

func TestParseVoutMultisigDestination(t *testing.T) {
	config := testConfig(t)
	pk1 := compressedPubkey(t, 0x51)
	pk2 := compressedPubkey(t, 0x62)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).AddData(pk1).AddData(pk2).AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG))

	output, dispenser, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(100, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	destination, isDestination := output.(Destination)
	if !isDestination {
		t.Fatalf("output = %#v, want Destination", output)
	}
	// The destination string is m, then every slot address sorted, then
	// the slot count.
	addr1 := utils.B58Encode(append(append([]byte{}, config.AddressVersion...), btcutil.Hash160(pk1)...))
	addr2 := utils.B58Encode(append(append([]byte{}, config.AddressVersion...), btcutil.Hash160(pk2)...))
	addrs := []string{addr1, addr2}
	if addrs[0] > addrs[1] {
		addrs[0], addrs[1] = addrs[1], addrs[0]
	}
	want := "1_" + addrs[0] + "_" + addrs[1] + "_2"
	if string(destination) != want {
		t.Fatalf("destination = %q, want %q", destination, want)
	}
	if dispenser.Destination == nil || *dispenser.Destination != want {
		t.Fatalf("dispenser = %+v", dispenser)
	}
}

func TestParseVoutMultisigRejectsShortChunk(t *testing.T) {
	config := testConfig(t)
	// Raw one-byte pushes: the builder would turn them into OP_1/OP_2 and
	// the layout check would reject the script before the chunk check.
	script := buildRaw(
		[]byte{txscript.OP_1}, rawPush([]byte{0x01}), rawPush([]byte{0x02}),
		[]byte{txscript.OP_2, txscript.OP_CHECKMULTISIG},
	)
	_, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script))
	if err == nil || !strings.Contains(err.Error(), "invalid OP_MULTISIG script") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseVoutP2SH(t *testing.T) {
	config := testConfig(t)
	hash := bytes.Repeat([]byte{0x4e}, 20)
	script := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).AddData(hash).AddOp(txscript.OP_EQUAL))

	output, dispenser, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(330, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	want := utils.B58Encode(append(append([]byte{}, config.P2SHAddressVersion...), hash...))
	if destination, isDestination := output.(Destination); !isDestination || string(destination) != want {
		t.Fatalf("output = %#v, want Destination(%s)", output, want)
	}
	if dispenser.Destination == nil || *dispenser.Destination != want || dispenser.Value == nil || *dispenser.Value != 330 {
		t.Fatalf("dispenser = %+v", dispenser)
	}

	// Before dispenser activation the annotation is empty.
	config.Heights.P2SHDispensers = 1000
	_, dispenser, err = ParseVout(config, testKey(), 100, "aa", 0, txOut(330, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if dispenser.Destination != nil || dispenser.Value != nil {
		t.Fatalf("dispenser = %+v, want empty", dispenser)
	}

	// Before P2SH address activation the script is unrecognized.
	config.Heights.P2SHAddresses = 1000
	if _, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(330, script)); err == nil ||
		!strings.Contains(err.Error(), "Unrecognized output type") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseVoutSegwit(t *testing.T) {
	config := testConfig(t)
	program := bytes.Repeat([]byte{0x2a}, 20)
	script := mustScript(t, txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(program))

	output, dispenser, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(910, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	destination, isDestination := output.(Destination)
	if !isDestination || !strings.HasPrefix(string(destination), "bcrt1") {
		t.Fatalf("output = %#v, want regtest bech32 destination", output)
	}
	if dispenser.Destination == nil || *dispenser.Destination != string(destination) {
		t.Fatalf("dispenser = %+v", dispenser)
	}

	// Before the segwit-txid fix the annotation is empty.
	config.Heights.CorrectSegwitTxids = 1000
	_, dispenser, err = ParseVout(config, testKey(), 100, "aa", 0, txOut(910, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if dispenser.Destination != nil || dispenser.Value != nil {
		t.Fatalf("dispenser = %+v, want empty", dispenser)
	}
}

func TestParseVoutTaproot(t *testing.T) {
	config := testConfig(t)
	program := bytes.Repeat([]byte{0x2a}, 32)
	script := mustScript(t, txscript.NewScriptBuilder().AddOp(txscript.OP_1).AddData(program))

	output, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script))
	if err != nil {
		t.Fatalf("ParseVout: %v", err)
	}
	if destination, isDestination := output.(Destination); !isDestination || !strings.HasPrefix(string(destination), "bcrt1p") {
		t.Fatalf("output = %#v, want taproot destination", output)
	}

	// Before taproot activation a v1 program is unrecognized.
	config.Heights.TaprootSupport = 1000
	if _, _, err := ParseVout(config, testKey(), 100, "aa", 0, txOut(0, script)); err == nil ||
		!strings.Contains(err.Error(), "Unrecognized output type") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseVoutUnrecognized(t *testing.T) {
	config := testConfig(t)
	script := mustScript(t, txscript.NewScriptBuilder().AddOp(txscript.OP_ADD))
	_, _, err := ParseVout(config, testKey(), 100, "deadbeef", 2, txOut(0, script))
	if err == nil || !strings.Contains(err.Error(), "Unrecognized output type | tx: deadbeef, vout: 2") {
		t.Fatalf("err = %v", err)
	}
}
