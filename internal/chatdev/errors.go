package chatdev

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures returned by the Client.
type ErrorKind int

const (
	KindInvalidArgument ErrorKind = iota + 1
	KindAuthentication
	KindNotFound
	KindValidation
	KindConflict
	KindTransport
	KindUnexpectedStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	case KindUnexpectedStatus:
		return "unexpected status"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrTransport        = errors.New("request failed")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidArgument:  ErrInvalidArgument,
	KindAuthentication:   ErrAuthentication,
	KindNotFound:         ErrNotFound,
	KindValidation:       ErrValidation,
	KindConflict:         ErrConflict,
	KindTransport:        ErrTransport,
	KindUnexpectedStatus: ErrUnexpectedStatus,
}

// Error is the single error type surfaced by the Client.
type Error struct {
	Kind   ErrorKind
	Op     string // operation name, e.g. "get task status"
	Status int    // HTTP status code, zero when no response was received
	Msg    string // human-readable summary
	Detail string // server-provided detail, if any
	TaskID int64  // task the request referred to, zero when not applicable
	Err    error  // underlying cause for transport failures
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	b.WriteString(msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can write errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of err, or zero when err is not an *Error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// TaskIDOf returns the task id carried by err, if any.
func TaskIDOf(err error) (int64, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.TaskID > 0 {
		return apiErr.TaskID, true
	}
	return 0, false
}

func invalidArgument(op, msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: msg}
}

func authError(op string, status int) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Status: status, Msg: "authentication failed: invalid API key"}
}

func taskNotFound(op string, status int, taskID int64) *Error {
	return &Error{Kind: KindNotFound, Op: op, Status: status, TaskID: taskID, Msg: fmt.Sprintf("task with ID %d not found", taskID)}
}

func validationError(op string, status int, detail string) *Error {
	if detail == "" {
		detail = "unknown validation error"
	}
	return &Error{Kind: KindValidation, Op: op, Status: status, Detail: detail, Msg: "validation error: " + detail}
}

func unexpectedStatus(op, path string, status int, detail string) *Error {
	return &Error{
		Kind:   KindUnexpectedStatus,
		Op:     op,
		Status: status,
		Detail: detail,
		Msg:    fmt.Sprintf("api %s returned status %d", path, status),
	}
}

// serverDetail extracts FastAPI's "detail" field, which is either a string or
// a list of {loc, msg} validation entries.
func serverDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}

	var entries []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil && len(entries) > 0 {
		parts := make([]string, 0, len(entries))
		for _, entry := range entries {
			loc := make([]string, 0, len(entry.Loc))
			for _, l := range entry.Loc {
				loc = append(loc, fmt.Sprint(l))
			}
			if len(loc) == 0 {
				parts = append(parts, entry.Msg)
				continue
			}
			parts = append(parts, strings.Join(loc, ".")+": "+entry.Msg)
		}
		return strings.Join(parts, "; ")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, envelope.Detail); err != nil {
		return string(envelope.Detail)
	}
	return compact.String()
}
