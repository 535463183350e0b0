package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/fxamacker/cbor/v2"
)

// rawPush emits a direct push without the builder's small-value
// canonicalization; inscription envelopes push single-byte markers as data.
func rawPush(data []byte) []byte {
	if len(data) == 0 {
		return []byte{txscript.OP_0}
	}
	return append([]byte{byte(len(data))}, data...)
}

func buildRaw(parts ...[]byte) []byte {
	var script []byte
	for _, part := range parts {
		script = append(script, part...)
	}
	return script
}

func mustCBOR(t *testing.T, value interface{}) []byte {
	t.Helper()
	encoded, err := cbor.Marshal(value)
	if err != nil {
		t.Fatalf("cbor marshal: %v", err)
	}
	return encoded
}

// ordEnvelope assembles the reveal witness script:
//
//	OP_0 OP_IF "ord" 0x07 <filler> <filler> <mime> <sections...> <filler> OP_ENDIF OP_CHECKSIG
//
// The mime push sits at instruction index 6 and the section walk starts at
// index 7, stopping three instructions before the end.
func ordEnvelope(mime []byte, sections ...[]byte) []byte {
	parts := [][]byte{
		{txscript.OP_0, txscript.OP_IF},
		rawPush([]byte("ord")), rawPush([]byte{0x07}),
		rawPush([]byte{0x01}), rawPush([]byte("pad")),
		rawPush(mime),
	}
	for _, section := range sections {
		parts = append(parts, rawPush(section))
	}
	parts = append(parts, rawPush([]byte("tail")), []byte{txscript.OP_ENDIF, txscript.OP_CHECKSIG})
	return buildRaw(parts...)
}

func TestExtractDataFromWitnessOrd(t *testing.T) {
	metadata := mustCBOR(t, []interface{}{42, "x"})
	script := ordEnvelope([]byte("text/plain"),
		[]byte{0x05}, metadata,
		[]byte{0x00}, []byte("hello"),
	)

	got, err := ExtractDataFromWitness(script)
	if err != nil {
		t.Fatalf("ExtractDataFromWitness: %v", err)
	}
	want := append([]byte{42}, mustCBOR(t, []interface{}{"x", "text/plain", []byte("hello")})...)
	if !bytes.Equal(got, want) {
		t.Fatalf("data = %x, want %x", got, want)
	}
}

func TestExtractDataFromWitnessOrdChunked(t *testing.T) {
	// Metadata split across several pushes is concatenated before the
	// CBOR decode; an empty push switches to the description section.
	metadata := mustCBOR(t, []interface{}{7, "payload"})
	script := ordEnvelope([]byte("application/octet-stream"),
		[]byte{0x05}, metadata[:3], metadata[3:],
		nil, []byte("he"), []byte("llo"),
	)

	got, err := ExtractDataFromWitness(script)
	if err != nil {
		t.Fatalf("ExtractDataFromWitness: %v", err)
	}
	want := append([]byte{7}, mustCBOR(t, []interface{}{"payload", "application/octet-stream", []byte("hello")})...)
	if !bytes.Equal(got, want) {
		t.Fatalf("data = %x, want %x", got, want)
	}
}

func TestExtractDataFromWitnessOrdNoDescription(t *testing.T) {
	metadata := mustCBOR(t, []interface{}{1, "only"})
	script := ordEnvelope([]byte("text/plain"), []byte{0x05}, metadata)

	got, err := ExtractDataFromWitness(script)
	if err != nil {
		t.Fatalf("ExtractDataFromWitness: %v", err)
	}
	want := append([]byte{1}, mustCBOR(t, []interface{}{"only", "text/plain"})...)
	if !bytes.Equal(got, want) {
		t.Fatalf("data = %x, want %x", got, want)
	}
}

func TestExtractDataFromWitnessOrdErrors(t *testing.T) {
	cases := []struct {
		name    string
		script  []byte
		wantErr string
	}{
		{
			name:    "no metadata",
			script:  ordEnvelope([]byte("text/plain"), []byte{0x00}, []byte("desc only")),
			wantErr: "No data found",
		},
		{
			name:    "metadata not cbor array",
			script:  ordEnvelope([]byte("text/plain"), []byte{0x05}, mustCBOR(t, "scalar")),
			wantErr: "Expected CBOR array",
		},
		{
			name:    "empty cbor array",
			script:  ordEnvelope([]byte("text/plain"), []byte{0x05}, mustCBOR(t, []interface{}{})),
			wantErr: "missing message_type_id",
		},
		{
			name:    "type id not integer",
			script:  ordEnvelope([]byte("text/plain"), []byte{0x05}, mustCBOR(t, []interface{}{"nan"})),
			wantErr: "must be an integer",
		},
		{
			name:    "garbage metadata",
			script:  ordEnvelope([]byte("text/plain"), []byte{0x05}, []byte{0xff, 0xfe}),
			wantErr: "CBOR decode error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractDataFromWitness(tc.script)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestExtractDataFromWitnessGeneric(t *testing.T) {
	// A non-ord envelope returns the pushes between the frame opcodes
	// concatenated; the slot right before OP_ENDIF is excluded.
	script := buildRaw(
		[]byte{txscript.OP_0, txscript.OP_IF},
		rawPush([]byte("first")), rawPush([]byte("second")),
		rawPush([]byte("excluded")),
		[]byte{txscript.OP_ENDIF, txscript.OP_CHECKSIG},
	)
	got, err := ExtractDataFromWitness(script)
	if err != nil {
		t.Fatalf("ExtractDataFromWitness: %v", err)
	}
	if !bytes.Equal(got, []byte("firstsecond")) {
		t.Fatalf("data = %q, want %q", got, "firstsecond")
	}
}

func TestExtractDataFromWitnessRejectsNonEnvelope(t *testing.T) {
	short := buildRaw([]byte{txscript.OP_0, txscript.OP_IF, txscript.OP_ENDIF, txscript.OP_CHECKSIG})
	if _, err := ExtractDataFromWitness(short); err == nil ||
		!strings.Contains(err.Error(), "too few instructions") {
		t.Fatalf("err = %v", err)
	}

	noFrame := buildRaw(
		rawPush([]byte("x")), []byte{txscript.OP_DUP},
		rawPush([]byte("y")), rawPush([]byte("z")),
		[]byte{txscript.OP_CHECKSIG},
	)
	if _, err := ExtractDataFromWitness(noFrame); err == nil ||
		!strings.Contains(err.Error(), "Not an envelope script") {
		t.Fatalf("err = %v", err)
	}
}
