// Package repository is the data access layer. One repository wraps each
// Mongo collection and exposes context-aware methods; no package-level
// database state exists, the owning client is passed down from main.
// Sentinel errors let handlers map failures to HTTP responses without
// inspecting driver internals.
package repository

import "errors"

// ErrNotFound is returned when a document lookup matches nothing. Handlers
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("document not found")
