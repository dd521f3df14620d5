// Package mcp exposes riftindex's five tools (search, get_chunk, get_file,
// index_status, reindex) over the Model Context Protocol, translating
// between the engine's Go types and the MCP SDK's typed tool handlers.
package mcp

import (
	"errors"
	"fmt"
	"strings"

	rifterrors "github.com/riftindex/riftindex/internal/errors"
)

// Standard JSON-RPC error codes, plus riftindex-specific ones in the
// implementation-defined -32000..-32099 range.
const (
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
	ErrCodeMethodNotFound = -32601

	ErrCodeNotFound      = -32001
	ErrCodeStorageFailed = -32002
)

// ToolError is an MCP-shaped error: a numeric code plus a message the
// client surfaces to its user.
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError rejects a programmer error (invalid enum,
// out-of-range top_k, missing required argument) before any work runs.
func NewInvalidParamsError(msg string) *ToolError {
	return &ToolError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewNotFoundError reports a chunk/file lookup miss.
func NewNotFoundError(msg string) *ToolError {
	return &ToolError{Code: ErrCodeNotFound, Message: msg}
}

// MapError converts an engine/storage error into a ToolError. A
// *rifterrors.RiftError's Suggestion (the rebuild-hint) is folded into the
// message so it reaches the caller; the underlying storage-engine message
// is never surfaced on its own.
func MapError(err error) *ToolError {
	if err == nil {
		return nil
	}

	var riftErr *rifterrors.RiftError
	if errors.As(err, &riftErr) {
		msg := riftErr.Message
		if riftErr.Suggestion != "" {
			msg = fmt.Sprintf("%s %s", msg, riftErr.Suggestion)
		}
		return &ToolError{Code: ErrCodeStorageFailed, Message: msg}
	}

	if strings.Contains(err.Error(), "not found") {
		return NewNotFoundError(err.Error())
	}

	return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
}
