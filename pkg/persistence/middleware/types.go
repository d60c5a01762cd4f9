// Package middleware decorates session stores and call archives.
package middleware

import "github.com/praveen131106/ivr-modern/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// ArchiveMiddleware allows wrapping a SummaryArchive to add behavior.
type ArchiveMiddleware func(ports.SummaryArchive) ports.SummaryArchive
