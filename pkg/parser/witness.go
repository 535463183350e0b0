package parser

import (
	"fmt"
	"unicode/utf8"

	"xcp-lens/pkg/analyzer"
	"xcp-lens/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// ExtractDataFromWitness reconstructs the meta-protocol payload from a
// taproot reveal witness script. For an ord inscription envelope the
// metadata is CBOR-rewritten to carry the mime type and description; any
// other envelope returns the concatenation of its pushed payloads.
func ExtractDataFromWitness(script []byte) ([]byte, error) {
	instrs, ok := analyzer.ParseInstructions(script)
	if len(instrs) < 5 {
		return nil, &types.ParseVoutError{Msg: "Invalid witness script: too few instructions"}
	}
	if !analyzer.IsEnvelopeScript(instrs, ok) {
		return nil, &types.ParseVoutError{Msg: "Not an envelope script"}
	}

	if !analyzer.IsOrdEnvelope(instrs) {
		// Generic envelope: the pushes from instruction 2 up to, but not
		// including, the slot right before OP_ENDIF.
		var data []byte
		for i := 2; i < len(instrs)-3; i++ {
			if instrs[i].IsPush() {
				data = append(data, instrs[i].Data...)
			}
		}
		return data, nil
	}

	mimeType := ""
	if instrs[6].IsPush() && utf8.Valid(instrs[6].Data) {
		mimeType = string(instrs[6].Data)
	}

	var metadata, description []byte
	descriptionChunks := 0
	section := sectionNone
	for i := 7; i < len(instrs)-3; i++ {
		in := instrs[i]
		if in.IsPush() {
			if len(in.Data) == 1 && in.Data[0] == 5 {
				section = sectionMetadata
				continue
			}
			if len(in.Data) == 0 || (len(in.Data) == 1 && in.Data[0] == 0) {
				section = sectionDescription
				continue
			}
			switch section {
			case sectionMetadata:
				metadata = append(metadata, in.Data...)
			case sectionDescription:
				description = append(description, in.Data...)
				descriptionChunks++
			}
		}
	}

	if len(metadata) == 0 {
		return nil, &types.ParseVoutError{Msg: "No data found in the ord inscription"}
	}

	var decoded interface{}
	if err := cbor.Unmarshal(metadata, &decoded); err != nil {
		return nil, &types.ParseVoutError{Msg: fmt.Sprintf("CBOR decode error: %v", err)}
	}
	arr, isArray := decoded.([]interface{})
	if !isArray {
		return nil, &types.ParseVoutError{Msg: "Expected CBOR array, found different type"}
	}
	if len(arr) == 0 {
		return nil, &types.ParseVoutError{Msg: "CBOR array is empty, missing message_type_id"}
	}

	var typeID byte
	switch id := arr[0].(type) {
	case uint64:
		typeID = byte(id)
	case int64:
		typeID = byte(id)
	default:
		return nil, &types.ParseVoutError{Msg: "message_type_id must be an integer"}
	}

	rest := append([]interface{}{}, arr[1:]...)
	rest = append(rest, mimeType)
	if descriptionChunks > 0 {
		rest = append(rest, description)
	}
	encoded, err := cbor.Marshal(rest)
	if err != nil {
		return nil, &types.ParseVoutError{Msg: fmt.Sprintf("Failed to encode CBOR data: %v", err)}
	}
	return append([]byte{typeID}, encoded...), nil
}

type envelopeSection int

const (
	sectionNone envelopeSection = iota
	sectionMetadata
	sectionDescription
)
