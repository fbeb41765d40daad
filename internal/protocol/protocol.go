// Package protocol defines the wire envelopes exchanged with the server.
//
// Both directions use the same JSON shape:
//
//	{"command": "<name>", "payload": {...}}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/reactor/internal/diff"
)

// Server to client commands
const (
	CommandRender         = "render"
	CommandAppend         = "append"
	CommandPrepend        = "prepend"
	CommandInsertAfter    = "insert_after"
	CommandInsertBefore   = "insert_before"
	CommandReplaceWith    = "replace_with"
	CommandRemove         = "remove"
	CommandFocusOn        = "focus_on"
	CommandScrollIntoView = "scroll_into_view"
	CommandURLChange      = "url_change"
	CommandSetQueryString = "set_query_string"
	CommandSetURLParams   = "set_url_params"
	CommandBack           = "back"
)

// Client to server commands
const (
	CommandJoin        = "join"
	CommandLeave       = "leave"
	CommandUserEvent   = "user_event"
	CommandQueryString = "query_string"
)

// url_change sub-commands
const (
	URLRedirect = "redirect"
	URLReplace  = "replace"
	URLPush     = "push"
)

// ErrMalformedEnvelope is returned for inbound frames that are not envelopes
var ErrMalformedEnvelope = errors.New("malformed envelope")

// codec keeps encoding/json semantics (struct tags, RawMessage, Unmarshaler)
var codec = sonic.ConfigStd

// Envelope is an outbound message
type Envelope struct {
	Command string      `json:"command"`
	Payload interface{} `json:"payload"`
}

// Inbound is a decoded inbound message with its payload left raw
type Inbound struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes an envelope
func Encode(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		env.Payload = struct{}{}
	}
	data, err := codec.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", env.Command, err)
	}
	return data, nil
}

// Decode parses an inbound frame
func Decode(data []byte) (*Inbound, error) {
	var in Inbound
	if err := codec.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if in.Command == "" {
		return nil, fmt.Errorf("%w: missing command", ErrMalformedEnvelope)
	}
	return &in, nil
}

// DecodePayload unmarshals a raw payload into v
func DecodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := codec.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

// Render replaces a component's content through a diff
type Render struct {
	ID   string    `json:"id"`
	Diff diff.Diff `json:"diff"`
}

// Insert carries markup for the structural insertion commands
type Insert struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

// Remove detaches an element
type Remove struct {
	ID string `json:"id"`
}

// FocusOn focuses the first element matching Selector
type FocusOn struct {
	Selector string `json:"selector"`
}

// ScrollIntoView scrolls an element into view
type ScrollIntoView struct {
	ID       string `json:"id"`
	Behavior string `json:"behavior"`
	Block    string `json:"block"`
	Inline   string `json:"inline"`
}

// URLChange asks the navigation layer to move
type URLChange struct {
	Command string `json:"command"`
	URL     string `json:"url"`
}

// QueryString carries a raw search string, with or without the leading "?"
type QueryString struct {
	QS string `json:"qs"`
}

// Child describes a component nested inside a joining component
type Child struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	State    string  `json:"state"`
}

// Join announces a mounted component
type Join struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	State    string  `json:"state"`
	Children []Child `json:"children,omitempty"`
}

// Leave announces an unmounted component
type Leave struct {
	ID string `json:"id"`
}

// UserEvent forwards a user action to a component
type UserEvent struct {
	ID           string                   `json:"id"`
	Command      string                   `json:"command"`
	ImplicitArgs map[string][]interface{} `json:"implicit_args"`
	ExplicitArgs map[string]interface{}   `json:"explicit_args"`
}
