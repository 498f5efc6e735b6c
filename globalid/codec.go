// Package globalid implements the reversible (typeName, internalID) global
// ID codec (spec.md §3, §8). It is grounded in the pattern the teacher's
// schemabuilder used for its Node interface wiring (since removed from this
// tree as codegen-specific), generalized into a standalone, pluggable codec
// so viaduct.Builder.withGlobalIDCodec can swap in an HMAC-signed or
// versioned implementation without touching the engine.
package globalid

import (
	"encoding/base64"
	"strings"

	"github.com/viaductgraph/viaduct/instrumentation"
)

// Codec serializes and deserializes global IDs. The default codec
// (Default) implements base64("Type:internalId"); callers may supply their
// own via viaduct.Builder.withGlobalIDCodec.
type Codec interface {
	Serialize(typeName, internalID string) string
	Deserialize(value string) (typeName, internalID string, err error)
}

// Default is the base64("Type:internalId") codec spec.md §6 documents as
// the out-of-the-box behavior.
var Default Codec = defaultCodec{}

type defaultCodec struct{}

func (defaultCodec) Serialize(typeName, internalID string) string {
	return base64.StdEncoding.EncodeToString([]byte(typeName + ":" + internalID))
}

func (defaultCodec) Deserialize(value string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", "", &instrumentation.InvalidGlobalID{Value: value, Err: err}
	}
	typeName, internalID, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", &instrumentation.InvalidGlobalID{Value: value, Err: errNoSeparator}
	}
	return typeName, internalID, nil
}

var errNoSeparator = errNoSeparatorType{}

type errNoSeparatorType struct{}

func (errNoSeparatorType) Error() string { return "decoded value has no type:id separator" }

// DeserializeExpecting decodes value and additionally checks that its type
// matches expectedType, raising InvalidGlobalID if not.
func DeserializeExpecting(codec Codec, value, expectedType string) (internalID string, err error) {
	typeName, internalID, err := codec.Deserialize(value)
	if err != nil {
		return "", err
	}
	if typeName != expectedType {
		return "", &instrumentation.InvalidGlobalID{Value: value, ExpectedType: expectedType}
	}
	return internalID, nil
}
