package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	User  string   `json:"user,omitempty"`  // Used for: Push, Remove, Trim, Query, Len
	Users []string `json:"users,omitempty"` // Used for: PushMany
	ID    uint64   `json:"id,omitempty"`    // Used for: Push, PushMany, Remove

	// Query parameters
	SinceID  uint64 `json:"since_id,omitempty"`
	HasSince bool   `json:"has_since,omitempty"`
	MaxID    uint64 `json:"max_id,omitempty"`
	HasMax   bool   `json:"has_max,omitempty"`
	Limit    int64  `json:"limit,omitempty"`
	Count    int64  `json:"count,omitempty"`
	Offset   int64  `json:"offset,omitempty"`

	// Response only fields
	IDs  []uint64 `json:"ids,omitempty"`  // Used for: Query responses
	N    int64    `json:"n,omitempty"`    // Used for: Len responses
	Ok   bool     `json:"ok,omitempty"`   // Set on every successful response
	Err  string   `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code uint64   `json:"code,omitempty"` // store.RetCode of a failed operation

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: DBInfo responses (json encoded db.DatabaseInfo)
}

// QueryParams extracts the pagination parameters of a query request.
func (m *Message) QueryParams() timeline.QueryParams {
	return timeline.QueryParams{
		SinceID:  m.SinceID,
		HasSince: m.HasSince,
		MaxID:    m.MaxID,
		HasMax:   m.HasMax,
		Limit:    int(m.Limit),
		Count:    int(m.Count),
		Offset:   int(m.Offset),
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPushRequest creates a new Push request
func NewPushRequest(user string, id uint64) *Message {
	return &Message{MsgType: MsgTPush, User: user, ID: id}
}

// NewPushManyRequest creates a new PushMany request
func NewPushManyRequest(users []string, id uint64) *Message {
	return &Message{MsgType: MsgTPushMany, Users: users, ID: id}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(user string, id uint64) *Message {
	return &Message{MsgType: MsgTRemove, User: user, ID: id}
}

// NewTrimRequest creates a new Trim request
func NewTrimRequest(user string) *Message {
	return &Message{MsgType: MsgTTrim, User: user}
}

// NewQueryRequest creates a new Query request
func NewQueryRequest(user string, p timeline.QueryParams) *Message {
	return &Message{
		MsgType:  MsgTQuery,
		User:     user,
		SinceID:  p.SinceID,
		HasSince: p.HasSince,
		MaxID:    p.MaxID,
		HasMax:   p.HasMax,
		Limit:    int64(p.Limit),
		Count:    int64(p.Count),
		Offset:   int64(p.Offset),
	}
}

// NewLenRequest creates a new Len request
func NewLenRequest(user string) *Message {
	return &Message{MsgType: MsgTLen, User: user}
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{MsgType: MsgTDBInfo}
}

// NewResponse creates the response to a write operation (Push, PushMany, Remove, Trim).
// code is only used if err is not nil.
func NewResponse(t MessageType, err error, code uint64) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.Err = err.Error()
		msg.Code = code
		return msg
	}
	msg.Ok = true
	return msg
}

// NewQueryResponse creates a new Query response
func NewQueryResponse(ids []uint64, err error, code uint64) *Message {
	msg := NewResponse(MsgTQuery, err, code)
	if err == nil {
		msg.IDs = ids
	}
	return msg
}

// NewLenResponse creates a new Len response
func NewLenResponse(n int, err error, code uint64) *Message {
	msg := NewResponse(MsgTLen, err, code)
	if err == nil {
		msg.N = int64(n)
	}
	return msg
}

// NewDBInfoResponse creates a new DBInfo response, info is json encoded into Meta
func NewDBInfoResponse(info any, err error, code uint64) *Message {
	if err == nil {
		meta, mErr := json.Marshal(info)
		if mErr != nil {
			return NewResponse(MsgTDBInfo, fmt.Errorf("failed to encode db info: %w", mErr), code)
		}
		msg := NewResponse(MsgTDBInfo, nil, code)
		msg.Meta = meta
		return msg
	}
	return NewResponse(MsgTDBInfo, err, code)
}

// NewErrorResponse creates a new generic error response
func NewErrorResponse(errMsg string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     errMsg,
	}
}

// --------------------------------------------------------------------------
// Message Type
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTPush:
		return "push"
	case MsgTPushMany:
		return "pushMany"
	case MsgTRemove:
		return "remove"
	case MsgTTrim:
		return "trim"
	case MsgTQuery:
		return "query"
	case MsgTLen:
		return "len"
	case MsgTDBInfo:
		return "dbInfo"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for c := MsgTSuccess; c <= MsgTDBInfo; c++ {
		if c.String() == s {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types
	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations
	MsgTPush     // Insert one id into one timeline
	MsgTPushMany // Insert one id into many timelines
	MsgTRemove   // Remove one id from one timeline
	MsgTTrim     // Enforce the size bound of one timeline
	MsgTQuery    // Read one page of a timeline
	MsgTLen      // Number of ids in a timeline
	MsgTDBInfo   // Metadata of the underlying database
)
