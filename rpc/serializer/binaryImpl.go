package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/common"
)

// NewBinarySerializer creates a new serializer using a compact binary format
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using the following layout:
//
//	1 byte  message type
//	1 byte  presence flags
//	for every present length-prefixed field (store, key, value, err):
//	4 bytes length (big endian) + data
//
// The Ok field is encoded in the flags byte only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasStore byte = 1 << 0
	hasKey   byte = 1 << 1
	hasValue byte = 1 << 2
	hasOk    byte = 1 << 3
	hasErr   byte = 1 << 4
)

const headerSize = 2

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, headerSize, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	var flags byte
	if msg.Store != "" {
		flags |= hasStore
		out = appendField(out, []byte(msg.Store))
	}
	if msg.Key != "" {
		flags |= hasKey
		out = appendField(out, []byte(msg.Key))
	}
	// a non nil but empty value is still a value (set of an empty value)
	if msg.Value != nil {
		flags |= hasValue
		out = appendField(out, msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Err != "" {
		flags |= hasErr
		out = appendField(out, []byte(msg.Err))
	}

	out[1] = flags
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	flags := data[1]
	r := fieldReader{data: data, pos: headerSize}

	*msg = common.Message{MsgType: common.MessageType(data[0]), Ok: flags&hasOk != 0}

	if flags&hasStore != 0 {
		f, err := r.next("store")
		if err != nil {
			return err
		}
		msg.Store = string(f)
	}
	if flags&hasKey != 0 {
		f, err := r.next("key")
		if err != nil {
			return err
		}
		msg.Key = string(f)
	}
	if flags&hasValue != 0 {
		f, err := r.next("value")
		if err != nil {
			return err
		}
		// copy, the frame buffer may be reused by the transport
		msg.Value = append(make([]byte, 0, len(f)), f...)
	}
	if flags&hasErr != 0 {
		f, err := r.next("err")
		if err != nil {
			return err
		}
		msg.Err = string(f)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	if msg.Store != "" {
		size += 4 + len(msg.Store)
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	return size
}

// appendField appends a length prefixed field
func appendField(out []byte, field []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(field)))
	return append(out, field...)
}

// fieldReader reads length prefixed fields in order
type fieldReader struct {
	data []byte
	pos  int
}

func (r *fieldReader) next(name string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", name)
	}
	f := r.data[r.pos : r.pos+n]
	r.pos += n
	return f, nil
}
