package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

// timeNow is a seam for tests that need deterministic evaluation timestamps.
var timeNow = time.Now

// createdAtLayout is RFC 3339 with fixed-width nanoseconds. The width matters:
// created_at is a TEXT column ordered lexicographically, and trimming trailing
// fractional zeros would make "…00.1Z" sort after "…00.12Z".
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the database at dbPath and prepares the schema.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "execute pragma %s", pragma)
		}
	}
	// Single writer keeps message and evaluation appends linearized.
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)
	return nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions (user_id);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		data TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions (id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages (session_id);
	CREATE TABLE IF NOT EXISTS skill_evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		skill_type TEXT,
		score REAL NOT NULL,
		reason TEXT NOT NULL,
		confidence REAL NOT NULL,
		conversation_context TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id),
		FOREIGN KEY (session_id) REFERENCES sessions (id)
	);
	CREATE INDEX IF NOT EXISTS idx_skill_evaluations_user_skill ON skill_evaluations (user_id, skill_type);
	CREATE INDEX IF NOT EXISTS idx_skill_evaluations_session_skill ON skill_evaluations (session_id, skill_type);
	CREATE INDEX IF NOT EXISTS idx_skill_evaluations_created_at ON skill_evaluations (created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "initialize schema")
	}
	return nil
}

// EnsureUser creates the user row if missing.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, userID)
	return errors.Wrap(err, "ensure user")
}

// EnsureSession creates the session if missing; an existing session keeps its
// owner regardless of the user id supplied here. OR IGNORE makes concurrent
// first contacts for the same id race-free.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, user_id) VALUES (?, ?)`, sessionID, userID)
	return errors.Wrap(err, "ensure session")
}

// Session returns the session by id.
func (s *SQLiteStore) Session(ctx context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id FROM sessions WHERE id = ?`, sessionID).Scan(&session.ID, &session.UserID)
	if err == sql.ErrNoRows {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "select session")
	}
	return session, nil
}

// UserSessions lists session ids owned by the user.
func (s *SQLiteStore) UserSessions(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM sessions WHERE user_id = ?`, userID); err != nil {
		return nil, errors.Wrap(err, "select user sessions")
	}
	return ids, nil
}

// AppendMessages stores the records as one JSON chunk row. Messages are saved
// and retrieved in chunks of several records per exchange.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, records []chat.Record) error {
	if len(records) == 0 {
		return nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "marshal records")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, data) VALUES (?, ?)`, sessionID, string(data)); err != nil {
		return errors.Wrap(err, "insert messages")
	}
	return nil
}

// Messages decodes every chunk of the session in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]chat.Record, error) {
	var chunks []string
	if err := s.db.SelectContext(ctx, &chunks,
		`SELECT data FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID); err != nil {
		return nil, errors.Wrap(err, "select messages")
	}

	var records []chat.Record
	for _, chunk := range chunks {
		var part []chat.Record
		if err := json.Unmarshal([]byte(chunk), &part); err != nil {
			return nil, errors.Wrap(err, "unmarshal message chunk")
		}
		records = append(records, part...)
	}
	return records, nil
}

// AppendEvaluation persists one judgment with a store-assigned timestamp.
func (s *SQLiteStore) AppendEvaluation(ctx context.Context, userID, sessionID string, j skill.Judgment, convContext string) (time.Time, error) {
	createdAt := timeNow().UTC()

	var skillType sql.NullString
	if j.SkillType != nil {
		skillType = sql.NullString{String: *j.SkillType, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO skill_evaluations
		 (user_id, session_id, skill_type, score, reason, confidence, conversation_context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, sessionID, skillType, j.Score, j.Reason, j.Confidence, convContext,
		createdAt.Format(createdAtLayout)); err != nil {
		return time.Time{}, errors.Wrap(err, "insert skill evaluation")
	}
	return createdAt, nil
}

// SkillHistory returns judgment records ascending by stored timestamp, with
// the autoincrement id as tiebreak for writes within the same instant.
func (s *SQLiteStore) SkillHistory(ctx context.Context, userID, sessionID string) ([]skill.Record, error) {
	query := `SELECT skill_type, score, reason, confidence, conversation_context, created_at, session_id
	          FROM skill_evaluations WHERE user_id = ?`
	args := []any{userID}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select skill history")
	}
	defer rows.Close()

	var records []skill.Record
	for rows.Next() {
		var (
			rec         skill.Record
			skillType   sql.NullString
			convContext sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&skillType, &rec.Score, &rec.Reason, &rec.Confidence, &convContext, &createdAt, &rec.SessionID); err != nil {
			return nil, errors.Wrap(err, "scan skill evaluation row")
		}
		if skillType.Valid {
			name := skillType.String
			rec.SkillType = &name
		}
		rec.ConversationContext = convContext.String
		rec.UserID = userID
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "parse created_at %q", createdAt)
		}
		rec.Timestamp = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate skill history")
	}
	return records, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
