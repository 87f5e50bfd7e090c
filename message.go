package devstore

import (
	"fmt"
	"strings"
)

// Status classifies the outcome carried by a Message.
// The numeric values are part of the C ABI and must not be reordered.
type Status uint32

const (
	// StatusInfo is a neutral informational outcome.
	StatusInfo Status = 0

	// StatusSuccess indicates the operation completed.
	StatusSuccess Status = 1

	// StatusWarning indicates a degraded but non-fatal outcome,
	// such as the service being under maintenance.
	StatusWarning Status = 2

	// StatusError indicates the operation failed.
	StatusError Status = 3
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusInfo:
		return "info"
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseStatus parses a Status from a string.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "info":
		return StatusInfo, nil
	case "success", "ok":
		return StatusSuccess, nil
	case "warning", "warn":
		return StatusWarning, nil
	case "error":
		return StatusError, nil
	default:
		return 0, fmt.Errorf("unknown status %q. Valid: info, success, warning, error", s)
	}
}

// Message is the outcome of one SDK operation as reported to callers
// outside Go: a severity, an optional code and a text payload.
type Message struct {
	Status Status
	Code   uint32
	Text   string
}

// Info builds an informational Message.
func Info(text string) Message {
	return Message{Status: StatusInfo, Text: sanitizeText(text)}
}

// Success builds a success Message.
func Success(text string) Message {
	return Message{Status: StatusSuccess, Text: sanitizeText(text)}
}

// Warning builds a warning Message.
func Warning(text string) Message {
	return Message{Status: StatusWarning, Text: sanitizeText(text)}
}

// Errorf builds an error Message from a format string.
func Errorf(format string, args ...interface{}) Message {
	return Message{Status: StatusError, Text: sanitizeText(fmt.Sprintf(format, args...))}
}

// WithCode returns a copy of the Message carrying the given code.
func (m Message) WithCode(code uint32) Message {
	m.Code = code
	return m
}

// FromError converts an SDK error into an error Message. A nil error
// maps to an empty success Message.
func FromError(err error) Message {
	if err == nil {
		return Success("")
	}
	if se, ok := err.(*ServerError); ok {
		return Errorf("%s", se.Error()).WithCode(uint32(se.StatusCode))
	}
	return Errorf("Error: %v", err)
}

// sanitizeText strips NUL bytes so the text survives conversion to a
// C string unmangled.
func sanitizeText(text string) string {
	return strings.ReplaceAll(text, "\x00", " ")
}
