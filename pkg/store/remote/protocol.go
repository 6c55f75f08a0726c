// Package remote exposes a DocumentStore and BlobStore over HTTP with a
// websocket snapshot stream, and provides the matching client.
//
// Routes:
//
//	POST  /collections/{collection}            create, returns {"id": ...}
//	PUT   /collections/{collection}/{id}       set, body {"data": {...}, "merge": bool}
//	PATCH /collections/{collection}/{id}       update with dotted keys
//	GET   /collections/{collection}/{id}       current snapshot
//	GET   /collections/{collection}/{id}/watch websocket snapshot stream
//	PUT   /blobs/*                             upload raw bytes, returns {"reference": ...}
package remote

import (
	"errors"
	"time"

	"github.com/goliatone/go-formsync/pkg/store"
)

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// Error codes carried in JSON error bodies.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidRef = "INVALID_REF"
	CodeBadRequest = "BAD_REQUEST"
	CodeClosed     = "CLOSED"
	CodeInternal   = "INTERNAL_ERROR"
)

// WatchMessage is one frame of the snapshot stream.
type WatchMessage struct {
	Type      string         `json:"type"`
	Exists    bool           `json:"exists"`
	Data      map[string]any `json:"data,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type setRequest struct {
	Data  map[string]any `json:"data"`
	Merge bool           `json:"merge"`
}

type createResponse struct {
	ID string `json:"id"`
}

type uploadResponse struct {
	Reference string `json:"reference"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrInvalidRef):
		return CodeInvalidRef
	case errors.Is(err, store.ErrClosed):
		return CodeClosed
	default:
		return CodeInternal
	}
}

func codeError(code, message string) error {
	var base error
	switch code {
	case CodeNotFound:
		base = store.ErrNotFound
	case CodeInvalidRef:
		base = store.ErrInvalidRef
	case CodeClosed:
		base = store.ErrClosed
	default:
		return errors.New("remote: " + message)
	}
	return &remoteError{base: base, message: message}
}

type remoteError struct {
	base    error
	message string
}

func (e *remoteError) Error() string { return "remote: " + e.message }
func (e *remoteError) Unwrap() error { return e.base }

func toWatchMessage(snap store.Snapshot, err error) WatchMessage {
	if err != nil {
		return WatchMessage{Type: MessageError, Error: err.Error()}
	}
	msg := WatchMessage{Type: MessageSnapshot, Exists: snap.Exists, Data: snap.Data}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		msg.UpdatedAt = &at
	}
	return msg
}
