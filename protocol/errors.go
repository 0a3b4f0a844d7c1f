package protocol

import "fmt"

// Tag is the short failure tag rendered on the wire as "ERROR: <tag>".
type Tag string

const (
	TagSymbolNotFound        Tag = "SymbolNotFound"
	TagMalformedCommand      Tag = "MalformedCommand"
	TagArgumentCountMismatch Tag = "ArgumentCountMismatch"
	TagAmbiguousSignature    Tag = "AmbiguousSignature"
	TagUnsupportedType       Tag = "UnsupportedType"
	TagArgumentTypeMismatch  Tag = "ArgumentTypeMismatch"
)

// Error is a per-command failure. The session dispatcher reports the tag
// to the client and keeps the connection open; the message is for logs
// and diagnostics only.
type Error struct {
	Tag Tag
	Msg string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Tag)
	}
	return string(e.Tag) + ": " + e.Msg
}

// Errf builds an Error with a formatted diagnostic message.
func Errf(tag Tag, format string, args ...interface{}) *Error {
	return &Error{Tag: tag, Msg: fmt.Sprintf(format, args...)}
}
