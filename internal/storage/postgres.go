package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	return OpenPostgres(config.DSN(), logger)
}

// OpenPostgres connects using a DSN or postgres:// URL and applies the schema.
func OpenPostgres(dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL storage ready")
	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, handle, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET handle = EXCLUDED.handle, display_name = EXCLUDED.display_name`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Handle, user.DisplayName)
	return opError("upsert user", err)
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int64) (*models.User, bool, error) {
	query := `
		SELECT id, handle, display_name, wake_at, created_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	var wakeAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Handle,
		&user.DisplayName,
		&wakeAt,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opError("get user", err)
	}
	if wakeAt.Valid {
		user.WakeAt = &wakeAt.Time
	}
	return user, true, nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]int64, error) {
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

// SwapWakeAt locks the user row so racing sleep/wake commands for the same
// user serialize.
func (s *PostgresStorage) SwapWakeAt(ctx context.Context, userID int64, wakeAt *time.Time) (*time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, opError("swap wake_at", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return nil, opError("swap wake_at", err)
	}

	var prev sql.NullTime
	if err := tx.QueryRowContext(ctx,
		`SELECT wake_at FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&prev); err != nil {
		return nil, opError("swap wake_at", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET wake_at = $1 WHERE id = $2`, nullTime(wakeAt), userID); err != nil {
		return nil, opError("swap wake_at", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, opError("swap wake_at", err)
	}

	if !prev.Valid {
		return nil, nil
	}
	return &prev.Time, nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, msg *models.MessageRecord) error {
	query := `
		INSERT INTO messages (owner_id, text, sender_label, category, urgency_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		msg.OwnerID,
		msg.Text,
		msg.SenderLabel,
		string(msg.Category),
		msg.UrgencyScore,
		msg.CreatedAt,
	).Scan(&msg.ID)

	return opError("append message", err)
}

func (s *PostgresStorage) CountByCategory(ctx context.Context, ownerID int64, since time.Time) ([]models.CategoryCount, error) {
	query := `
		SELECT category, COUNT(*)
		FROM messages
		WHERE owner_id = $1 AND ($2::timestamptz IS NULL OR created_at > $2)
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`

	var bound sql.NullTime
	if !since.IsZero() {
		bound = sql.NullTime{Time: since, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, ownerID, bound)
	if err != nil {
		return nil, opError("count by category", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanCounts(rows *sql.Rows) ([]models.CategoryCount, error) {
	var out []models.CategoryCount
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, opError("count by category", err)
		}
		out = append(out, models.CategoryCount{Category: models.Category(category), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, opError("count by category", err)
	}
	return out, nil
}
