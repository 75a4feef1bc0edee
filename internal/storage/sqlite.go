package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStorage keeps users and messages in a local SQLite file.
// Timestamps are stored as Unix microseconds.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStorage opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	logger.Info("SQLite storage ready", zap.String("path", path))
	return &SQLiteStorage{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, handle, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET handle = excluded.handle, display_name = excluded.display_name`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Handle, user.DisplayName, s.now().UnixMicro())
	return opError("upsert user", err)
}

func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (*models.User, bool, error) {
	query := `
		SELECT id, handle, display_name, wake_at, created_at
		FROM users
		WHERE id = ?`

	user := &models.User{}
	var (
		wakeAt    sql.NullInt64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Handle,
		&user.DisplayName,
		&wakeAt,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opError("get user", err)
	}
	user.CreatedAt = time.UnixMicro(createdAt).UTC()
	if wakeAt.Valid {
		t := time.UnixMicro(wakeAt.Int64).UTC()
		user.WakeAt = &t
	}
	return user, true, nil
}

func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, opError("list users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, opError("list users", err)
		}
		ids = append(ids, id)
	}
	return ids, opError("list users", rows.Err())
}

func (s *SQLiteStorage) SwapWakeAt(ctx context.Context, userID int64, wakeAt *time.Time) (*time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, opError("swap wake_at", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		userID, s.now().UnixMicro()); err != nil {
		return nil, opError("swap wake_at", err)
	}

	var prev sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT wake_at FROM users WHERE id = ?`, userID).Scan(&prev); err != nil {
		return nil, opError("swap wake_at", err)
	}

	var next sql.NullInt64
	if wakeAt != nil {
		next = sql.NullInt64{Int64: wakeAt.UnixMicro(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET wake_at = ? WHERE id = ?`, next, userID); err != nil {
		return nil, opError("swap wake_at", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, opError("swap wake_at", err)
	}

	if !prev.Valid {
		return nil, nil
	}
	t := time.UnixMicro(prev.Int64).UTC()
	return &t, nil
}

func (s *SQLiteStorage) AppendMessage(ctx context.Context, msg *models.MessageRecord) error {
	query := `
		INSERT INTO messages (owner_id, text, sender_label, category, urgency_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		msg.OwnerID,
		msg.Text,
		msg.SenderLabel,
		string(msg.Category),
		msg.UrgencyScore,
		msg.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return opError("append message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return opError("append message", err)
	}
	msg.ID = id
	return nil
}

func (s *SQLiteStorage) CountByCategory(ctx context.Context, ownerID int64, since time.Time) ([]models.CategoryCount, error) {
	query := `
		SELECT category, COUNT(*)
		FROM messages
		WHERE owner_id = ? AND created_at > ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`

	// zero time means all history
	var bound int64 = math.MinInt64
	if !since.IsZero() {
		bound = since.UnixMicro()
	}

	rows, err := s.db.QueryContext(ctx, query, ownerID, bound)
	if err != nil {
		return nil, opError("count by category", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
