// Package events defines the one narrow channel through which the client's
// internal state becomes visible to callers.
package events

import "encoding/json"

// Channel names the event streams the client publishes on.
type Channel string

const (
	Login  Channel = "login"
	Logout Channel = "logout"
	Close  Channel = "close"
	Update Channel = "update"
	Arrive Channel = "arrive"
)

// Result carries either a success payload or an error string, never both.
type Result struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Ok wraps a success payload.
func Ok(data interface{}) Result {
	return Result{Data: data}
}

// Err wraps a failure reason.
func Err(err error) Result {
	return Result{Error: err.Error()}
}

// HasError reports whether the result carries a failure.
func (r Result) HasError() bool {
	return r.Error != ""
}

// JSON renders the result for transport to an embedding shell.
func (r Result) JSON() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":"unserializable event payload"}`)
	}
	return data
}

// Publisher receives named events from the client. Implementations must be
// safe for concurrent use; the handle stays valid until the client shuts
// down.
type Publisher interface {
	Publish(channel Channel, result Result)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Channel, Result) {}
