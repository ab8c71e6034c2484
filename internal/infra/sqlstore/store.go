// Package sqlstore implements app.Store on bun for Postgres and SQLite.
// Queries use plain SQL with bun's ? placeholders so both dialects share them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/sqlstore/migrations"
)

type Store struct {
	db *bun.DB
	pg bool
}

// New wraps an opened bun database. Row locks are only taken on Postgres;
// SQLite serializes writers on its single connection.
func New(db *bun.DB) *Store {
	return &Store{db: db, pg: db.Dialect().Name() == dialect.PG}
}

// OpenPostgres connects through pgdriver.
func OpenPostgres(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return New(bun.NewDB(sqldb, pgdialect.New())), nil
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "watchparty.db"
	}
	sqldb, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(s.db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}

func (s *Store) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx bun.Tx) error) error {
	if err := s.db.RunInTx(ctx, nil, fn); err != nil {
		return domain.Storage(op, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const roomColumns = `id, code, host_id, status, scoring_mode, created_at`

func scanRoom(row scanner) (domain.Room, error) {
	var (
		room          domain.Room
		status, mode  string
		createdAtNano int64
	)
	if err := row.Scan(&room.ID, &room.Code, &room.HostID, &status, &mode, &createdAtNano); err != nil {
		return domain.Room{}, err
	}
	room.Status = domain.RoomStatus(status)
	room.ScoringMode = domain.ScoringMode(mode)
	room.CreatedAt = fromNanos(createdAtNano)
	return room, nil
}

// lockRoom reads the room inside tx, holding its row lock on Postgres.
func (s *Store) lockRoom(ctx context.Context, tx bun.Tx, roomID string) (domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	if s.pg {
		query += ` FOR UPDATE`
	}
	room, err := scanRoom(tx.QueryRowContext(ctx, query, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.NotFound("room", roomID)
	}
	return room, err
}

// nextSeq returns the next per-room sequence number of table.
func nextSeq(ctx context.Context, tx bun.Tx, table, roomID string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM `+table+` WHERE room_id = ?`, roomID).Scan(&seq)
	return seq, err
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
