package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/uow"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// PostgresStore implements Store against a single `sessions` table,
// grounded on internal/sessions/cockroach.go's CockroachStore: same
// sql.Open("postgres", dsn)/prepared-statement/connection-pool shape,
// collapsed from that package's normalized sessions+messages schema to
// one row per session holding its event/plan/file/memory state as
// JSONB, since this spec's Session is a single aggregate rather than a
// session row joined against a separate message table.
type PostgresStore struct {
	db *sql.DB

	stmtCreate  *sql.Stmt
	stmtGet     *sql.Stmt
	stmtUpdate  *sql.Stmt
	stmtDelete  *sql.Stmt
	stmtChildren *sql.Stmt
}

// PostgresConfig mirrors internal/config.PostgresConfig's pool knobs.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Schema is the DDL PostgresStore expects to already exist; callers run
// it via migration tooling rather than PostgresStore itself.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                text PRIMARY KEY,
	title             text NOT NULL DEFAULT '',
	status            text NOT NULL,
	latest_message    text NOT NULL DEFAULT '',
	latest_message_at timestamptz,
	unread_count      integer NOT NULL DEFAULT 0,
	task_id           text NOT NULL DEFAULT '',
	sandbox_id        text NOT NULL DEFAULT '',
	parent_session_id text NOT NULL DEFAULT '',
	events            jsonb NOT NULL DEFAULT '[]',
	files             jsonb NOT NULL DEFAULT '[]',
	memories          jsonb NOT NULL DEFAULT '{}',
	plans             jsonb NOT NULL DEFAULT '[]',
	created_at        timestamptz NOT NULL,
	updated_at        timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_parent_idx ON sessions (parent_session_id);
`

// NewPostgresStore opens db, verifies it with a ping, and prepares the
// statements every Store method reuses.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("session: postgres dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("session: open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	var cancel context.CancelFunc
	if cfg.ConnectTimeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.prepare(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) prepare() error {
	var err error
	s.stmtCreate, err = s.db.Prepare(`
		INSERT INTO sessions (id, title, status, latest_message, latest_message_at,
			unread_count, task_id, sandbox_id, parent_session_id, events, files,
			memories, plans, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`)
	if err != nil {
		return fmt.Errorf("session: prepare create: %w", err)
	}

	s.stmtGet, err = s.db.Prepare(`
		SELECT id, title, status, latest_message, latest_message_at, unread_count,
			task_id, sandbox_id, parent_session_id, events, files, memories, plans,
			created_at, updated_at
		FROM sessions WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("session: prepare get: %w", err)
	}

	s.stmtUpdate, err = s.db.Prepare(`
		UPDATE sessions SET title=$1, status=$2, latest_message=$3, latest_message_at=$4,
			unread_count=$5, task_id=$6, sandbox_id=$7, parent_session_id=$8, events=$9,
			files=$10, memories=$11, plans=$12, updated_at=$13
		WHERE id = $14
	`)
	if err != nil {
		return fmt.Errorf("session: prepare update: %w", err)
	}

	s.stmtDelete, err = s.db.Prepare(`DELETE FROM sessions WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("session: prepare delete: %w", err)
	}

	s.stmtChildren, err = s.db.Prepare(`
		SELECT id, title, status, latest_message, latest_message_at, unread_count,
			task_id, sandbox_id, parent_session_id, events, files, memories, plans,
			created_at, updated_at
		FROM sessions WHERE parent_session_id = $1 ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("session: prepare children: %w", err)
	}
	return nil
}

// Close releases the prepared statements and the underlying pool.
func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtCreate, s.stmtGet, s.stmtUpdate, s.stmtDelete, s.stmtChildren} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		return errors.New("session: id is required")
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = sess.CreatedAt
	if sess.Memories == nil {
		sess.Memories = make(map[string][]models.ChatMessage)
	}

	events, files, memories, plans, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}

	_, err = s.stmtCreate.ExecContext(ctx,
		sess.ID, sess.Title, string(sess.Status), sess.LatestMessage, nullTime(sess.LatestMessageAt),
		sess.UnreadCount, sess.TaskID, sess.SandboxID, sess.ParentSessionID,
		events, files, memories, plans, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return scanSession(s.stmtGet.QueryRowContext(ctx, sessionID))
}

func (s *PostgresStore) Save(ctx context.Context, sess *models.Session) error {
	return uow.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		sess.UpdatedAt = time.Now().UTC()
		events, files, memories, plans, err := marshalSessionDocs(sess)
		if err != nil {
			return err
		}

		res, err := tx.StmtContext(ctx, s.stmtUpdate).ExecContext(ctx,
			sess.Title, string(sess.Status), sess.LatestMessage, nullTime(sess.LatestMessageAt),
			sess.UnreadCount, sess.TaskID, sess.SandboxID, sess.ParentSessionID,
			events, files, memories, plans, sess.UpdatedAt, sess.ID,
		)
		if err != nil {
			return fmt.Errorf("session: save: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("session: save rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.stmtDelete.ExecContext(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Children(ctx context.Context, parentID string) ([]*models.Session, error) {
	rows, err := s.stmtChildren.QueryContext(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("session: children: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LoadMemory(ctx context.Context, sessionID, agentID string) (*memory.Memory, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return memory.Restore(sess.Memories[agentID]), nil
}

func (s *PostgresStore) SaveMemory(ctx context.Context, sessionID, agentID string, mem *memory.Memory) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Memories == nil {
		sess.Memories = make(map[string][]models.ChatMessage)
	}
	sess.Memories[agentID] = mem.Messages()
	return s.Save(ctx, sess)
}

// rowScanner covers both *sql.Row and *sql.Rows, letting Get and
// Children share one scan routine.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess                                     models.Session
		status                                   string
		latestMessageAt                          sql.NullTime
		eventsJSON, filesJSON, memoriesJSON, plansJSON []byte
	)

	err := row.Scan(
		&sess.ID, &sess.Title, &status, &sess.LatestMessage, &latestMessageAt,
		&sess.UnreadCount, &sess.TaskID, &sess.SandboxID, &sess.ParentSessionID,
		&eventsJSON, &filesJSON, &memoriesJSON, &plansJSON,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: scan: %w", err)
	}

	sess.Status = models.SessionStatus(status)
	if latestMessageAt.Valid {
		sess.LatestMessageAt = latestMessageAt.Time
	}

	if err := json.Unmarshal(eventsJSON, &sess.Events); err != nil {
		return nil, fmt.Errorf("session: unmarshal events: %w", err)
	}
	if err := json.Unmarshal(filesJSON, &sess.Files); err != nil {
		return nil, fmt.Errorf("session: unmarshal files: %w", err)
	}
	if err := json.Unmarshal(memoriesJSON, &sess.Memories); err != nil {
		return nil, fmt.Errorf("session: unmarshal memories: %w", err)
	}
	if err := json.Unmarshal(plansJSON, &sess.Plans); err != nil {
		return nil, fmt.Errorf("session: unmarshal plans: %w", err)
	}
	return &sess, nil
}

func marshalSessionDocs(sess *models.Session) (events, files, memories, plans []byte, err error) {
	if events, err = json.Marshal(sess.Events); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("session: marshal events: %w", err)
	}
	if files, err = json.Marshal(sess.Files); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("session: marshal files: %w", err)
	}
	if memories, err = json.Marshal(sess.Memories); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("session: marshal memories: %w", err)
	}
	if plans, err = json.Marshal(sess.Plans); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("session: marshal plans: %w", err)
	}
	return events, files, memories, plans, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
