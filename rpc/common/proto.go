package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses
// exchanged with a store node. Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Store is the name of the store on the node the request addresses
	Store string `json:"store,omitempty"`

	Key   string `json:"key,omitempty"`   // Used for: Set, Get, Has, Delete
	Value []byte `json:"value,omitempty"` // Used for: Set (request), Get (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Get, Has, Delete responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(store, key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Store:   store,
		Key:     key,
		Value:   value,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(store, key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Store:   store,
		Key:     key,
	}
}

// NewHasRequest creates a new Has request
func NewHasRequest(store, key string) *Message {
	return &Message{
		MsgType: MsgTKVHas,
		Store:   store,
		Key:     key,
	}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(store, key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Store:   store,
		Key:     key,
	}
}

// NewResponse creates a response of the given type. A non nil err is carried as string.
func NewResponse(t MessageType, value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: t,
		Value:   value,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message exchanged with a store node.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:  "success",
	MsgTError:    "error",
	MsgTKVSet:    "set",
	MsgTKVDelete: "delete",
	MsgTKVGet:    "get",
	MsgTKVHas:    "has",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the MessageType as its name.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a MessageType from its name.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	MsgTKVSet    // Set a key-value pair
	MsgTKVDelete // Delete a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVHas    // Check if a key exists
)
