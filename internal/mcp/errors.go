package mcp

import (
	"errors"
)

// Sentinel errors for MCP operations.
// For creating domain errors with context, wrap these with DomainError from internal/errors.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered indicates a tool with the same name is already registered.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrToolPanicked indicates a tool panicked during execution.
	ErrToolPanicked = errors.New("tool panicked")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceAlreadyRegistered indicates a resource with the same URI is already registered.
	ErrResourceAlreadyRegistered = errors.New("resource already registered")
)
