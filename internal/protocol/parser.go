// Package protocol implements the line-oriented text protocol of the TCP listener.
//
// A request is whatever bytes arrived in a single read:
//
//	PUT <key> <value>   value is the verbatim rest of the line, spaces included
//	GET <key>
//
// Replies are single lines terminated by '\n'.
package protocol

import (
	"errors"
	"strings"
)

// Command names.
const (
	CommandPut = "PUT"
	CommandGet = "GET"
)

// ErrInvalid is returned for any request that is neither a PUT nor a GET.
var ErrInvalid = errors.New("invalid")

// Command is a parsed client request.
type Command struct {
	Name  string // CommandPut or CommandGet
	Key   string
	Value string // only for PUT
}

// Parse decodes a raw request buffer.
//
// Invalid UTF-8 is replaced with U+FFFD, surrounding whitespace is trimmed,
// and the line is split on the first two spaces only, so a value may contain
// the delimiter. Command names are case-sensitive.
func Parse(raw []byte) (*Command, error) {
	msg := strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
	parts := strings.SplitN(msg, " ", 3)

	switch {
	case len(parts) == 3 && parts[0] == CommandPut:
		return &Command{Name: CommandPut, Key: parts[1], Value: parts[2]}, nil
	case len(parts) == 2 && parts[0] == CommandGet:
		return &Command{Name: CommandGet, Key: parts[1]}, nil
	default:
		return nil, ErrInvalid
	}
}

// OK is the reply to a successful PUT.
func OK() []byte {
	return []byte("OK\n")
}

// Value is the reply to a GET hit.
func Value(v string) []byte {
	return []byte("VALUE " + v + "\n")
}

// NotFound is the reply to a GET miss.
func NotFound() []byte {
	return []byte("NOTFOUND\n")
}

// Error is the reply to a failed PUT. Line breaks in msg are flattened so the
// reply stays a single line.
func Error(msg string) []byte {
	msg = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(msg)
	return []byte("ERR " + msg + "\n")
}

// Invalid is the reply to a request that does not parse.
func Invalid() []byte {
	return Error(ErrInvalid.Error())
}
