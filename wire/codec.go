// Package wire implements the text wire protocol that carries named inbound
// streams and a single outbound stream over one WebSocket connection, plus
// the stream primitives (SingleSubscriptionProxy, QueuedSubject) used to
// present those streams to controller methods.
package wire

import "strings"

// Kind is the single-character tag that leads every inbound frame.
type Kind byte

const (
	KindNext     Kind = 'n' // deliver Payload as the next item
	KindError    Kind = 'e' // terminate the stream with an error
	KindComplete Kind = 'c' // terminate the stream normally
	KindFinal    Kind = 'f' // deliver Payload, then terminate normally
)

// Frame is one decoded inbound WebSocket text message.
type Frame struct {
	Kind    Kind
	Name    string
	Payload string
}

// valid reports whether k is one of the four recognized inbound kinds.
func (k Kind) valid() bool {
	switch k {
	case KindNext, KindError, KindComplete, KindFinal:
		return true
	default:
		return false
	}
}

// DecodeFrame parses one inbound WebSocket text message: the first
// character is the kind tag, the following characters up to the first '.'
// are the parameter name, and everything after that '.' is the payload. A
// message with no '.' has an empty payload and the name is the entire
// tail. A message with fewer than one character is malformed.
//
// Malformed or unrecognized frames are reported via ok=false; callers must
// drop them silently rather than closing the connection.
func DecodeFrame(msg string) (f Frame, ok bool) {
	if len(msg) == 0 {
		return Frame{}, false
	}

	k := Kind(msg[0])
	if !k.valid() {
		return Frame{}, false
	}

	rest := msg[1:]
	name, payload, found := strings.Cut(rest, ".")
	if !found {
		name, payload = rest, ""
	}

	return Frame{Kind: k, Name: name, Payload: payload}, true
}

// EncodeNext builds the outbound "n"+payload frame text.
func EncodeNext(payload string) string { return string(KindNext) + payload }

// EncodeError builds the outbound "e"+payload frame text.
func EncodeError(payload string) string { return string(KindError) + payload }

// EncodeComplete is the outbound completion frame: the single character "c".
const EncodeComplete = string(KindComplete)
