package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// Factory creates a serializer. A client factory calls it once and shares
// the result between all store handles.
type Factory func() IRPCSerializer

// ByName returns the factory registered for the given name (json, gob, binary)
func ByName(name string) (Factory, error) {
	switch name {
	case "json":
		return NewJSONSerializer, nil
	case "gob":
		return NewGOBSerializer, nil
	case "binary":
		return NewBinarySerializer, nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
