// Package store persists sessions, raw conversation records and skill
// evaluations. Both logs are append-only: the contract has no update or
// delete operation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

// ErrSessionNotFound is returned when a session id has never been ensured.
var ErrSessionNotFound = errors.New("session not found")

// Store is the persistence boundary for the evaluation pipeline.
type Store interface {
	// EnsureUser creates the user row if missing. Idempotent.
	EnsureUser(ctx context.Context, userID string) error

	// EnsureSession creates the session if missing. It never reassigns an
	// existing session's owning user.
	EnsureSession(ctx context.Context, sessionID, userID string) error

	// Session returns the session by id or ErrSessionNotFound.
	Session(ctx context.Context, sessionID string) (chat.Session, error)

	// UserSessions lists session ids owned by the user.
	UserSessions(ctx context.Context, userID string) ([]string, error)

	// AppendMessages appends a chunk of records to the session log.
	AppendMessages(ctx context.Context, sessionID string, records []chat.Record) error

	// Messages returns every record of the session in append order.
	Messages(ctx context.Context, sessionID string) ([]chat.Record, error)

	// AppendEvaluation persists one judgment and returns the store-assigned
	// timestamp. Callers never supply their own.
	AppendEvaluation(ctx context.Context, userID, sessionID string, j skill.Judgment, convContext string) (time.Time, error)

	// SkillHistory returns judgment records for the user ascending by
	// stored timestamp, optionally scoped to one session (empty = all).
	SkillHistory(ctx context.Context, userID, sessionID string) ([]skill.Record, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
