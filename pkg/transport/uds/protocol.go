package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

var reqCounter atomic.Uint64

// MaxMessageSize bounds one NDJSON line.
const MaxMessageSize = 8 << 20

// ReadChunkSize is the number of file bytes one ReadLog call returns when the
// request does not ask for less. Base64 keeps a full chunk well under
// MaxMessageSize.
const ReadChunkSize = 1 << 20

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	id := fmt.Sprintf("req-%d", reqCounter.Add(1))
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		raw = b
	}
	return Message{
		Type:   MsgTypeReq,
		ID:     id,
		Method: method,
		Data:   raw,
	}, nil
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		raw = b
	}
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Data:   raw,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Error:  errMsg,
	}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	id := fmt.Sprintf("evt-%d", reqCounter.Add(1))
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		raw = b
	}
	return Message{
		Type:   MsgTypeEvt,
		ID:     id,
		Method: method,
		Data:   raw,
	}, nil
}

// UnmarshalData decodes the message payload into v.
func (m Message) UnmarshalData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty data", m.Method)
	}
	return json.Unmarshal(m.Data, v)
}

// Methods
const (
	MethodPing        = "Ping"
	MethodLog         = "Log"
	MethodReadLog     = "ReadLog"
	MethodStatLog     = "StatLog"
	MethodOpenSession = "OpenSession"
	MethodClearLog    = "ClearLog"
	MethodLifecycle   = "Lifecycle"

	EventLogAppended = "log.appended"
	EventLogCleared  = "log.cleared"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong bool `json:"pong"`
}

// LogRequest is the payload for a Log request. Exactly one of Text and
// Value is set; Scalar marks Value as a scalar rather than a structure.
type LogRequest struct {
	Level  string          `json:"level"`
	Text   *string         `json:"text,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Scalar bool            `json:"scalar,omitempty"`
}

// ReadLogRequest asks for up to Limit bytes of the log file starting at
// Offset. A zero Limit means ReadChunkSize.
type ReadLogRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit,omitempty"`
}

// ReadLogResponse carries one chunk of the log file. Data is sent as base64 so
// the file's bytes arrive unchanged even when they are not valid UTF-8.
type ReadLogResponse struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
	Size   int64  `json:"size"` // file size when the chunk was read
}

// EOF reports whether the chunk reaches the end of the file as it was when
// the chunk was read.
func (r ReadLogResponse) EOF() bool {
	return r.Offset+int64(len(r.Data)) >= r.Size
}

// Snapshot is the whole log file assembled from ReadLog chunks. Size is the
// file offset the snapshot ends at; appended events before it are already
// part of Contents.
type Snapshot struct {
	Path     string
	Contents string
	Size     int64
}

// SessionResponse carries an anti-forgery token for ClearLog.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresMs int64  `json:"expires_ms"`
}

// ClearLogRequest is the payload for ClearLog.
type ClearLogRequest struct {
	Token string `json:"token"`
}

// ClearLogResponse reports the outcome of ClearLog as an admin notice.
type ClearLogResponse struct {
	OK     bool   `json:"ok"`
	Notice string `json:"notice"`
}

// LifecycleRequest is the payload for Lifecycle.
type LifecycleRequest struct {
	Event string `json:"event"` // activate, deactivate, uninstall
}

// LifecycleResponse reports the file state after the event.
type LifecycleResponse struct {
	State string `json:"state"`
}

// AppendedEvent is pushed when bytes are appended to the log file. Data is
// base64 on the wire, like ReadLogResponse.
type AppendedEvent struct {
	Data   []byte `json:"data"`
	Offset int64  `json:"offset"`
}
