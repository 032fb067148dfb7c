// Package ledger remembers, per remote path, the ETag and metadata observed
// by the last completed download or upload. Callers use it to send If-Match
// on later uploads so that concurrent server-side edits are not overwritten.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const dirPermissions = 0o700

const (
	sqlGetEntry = `SELECT etag, remote_id, mtime, size, updated_at
		FROM entries WHERE account = ? AND remote_path = ?`

	sqlUpsertEntry = `INSERT INTO entries
		(account, remote_path, etag, remote_id, mtime, size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, remote_path) DO UPDATE SET
		 etag = excluded.etag,
		 remote_id = excluded.remote_id,
		 mtime = excluded.mtime,
		 size = excluded.size,
		 updated_at = excluded.updated_at`

	// Deletes the path and everything below it. substr counts characters,
	// and avoids LIKE so '%' and '_' in names match literally.
	sqlForgetTree = `DELETE FROM entries WHERE account = ?
		AND (remote_path = ? OR substr(remote_path, 1, ?) = ?)`

	sqlCountEntries = `SELECT COUNT(*) FROM entries WHERE account = ?`

	sqlListEntries = `SELECT remote_path, etag, remote_id, mtime, size, updated_at
		FROM entries WHERE account = ? ORDER BY remote_path`
)

// Entry is what the ledger knows about one remote file.
type Entry struct {
	RemotePath string
	ETag       string
	RemoteID   string
	ModTime    time.Time // zero when the server did not report one
	Size       int64
	UpdatedAt  time.Time
}

// Store is a ledger for a single account. Several accounts may share one
// database file.
type Store struct {
	db      *sql.DB
	account string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens or creates the ledger database at path and migrates it.
// account scopes every read and write, typically "user@server".
func Open(ctx context.Context, path, account string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", path, err)
	}

	// Parallel downloads record concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("ledger opened", slog.String("path", path), slog.String("account", account))

	return &Store{db: db, account: account, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("ledger: closing: %w", err)
	}

	return nil
}

// Record stores e, replacing any previous entry for the same path.
// UpdatedAt is set by the store.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RemotePath == "" || e.ETag == "" {
		return errors.New("ledger: entry needs a remote path and an ETag")
	}

	var mtime sql.NullInt64
	if !e.ModTime.IsZero() {
		mtime = sql.NullInt64{Int64: e.ModTime.UnixNano(), Valid: true}
	}

	var remoteID sql.NullString
	if e.RemoteID != "" {
		remoteID = sql.NullString{String: e.RemoteID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, sqlUpsertEntry,
		s.account, e.RemotePath, e.ETag, remoteID, mtime, e.Size, s.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: recording %s: %w", e.RemotePath, err)
	}

	s.logger.Debug("ledger entry recorded",
		slog.String("path", e.RemotePath),
		slog.String("etag", e.ETag),
	)

	return nil
}

// Get returns the entry for remotePath, or nil when there is none.
func (s *Store) Get(ctx context.Context, remotePath string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, sqlGetEntry, s.account, remotePath)

	e, err := scanEntry(row, remotePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent entry is not an error
	}

	if err != nil {
		return nil, fmt.Errorf("ledger: reading %s: %w", remotePath, err)
	}

	return e, nil
}

// List returns every entry of the account ordered by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqlListEntries, s.account)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing entries: %w", err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var p string

		e, err := scanEntry(rows, "", &p)
		if err != nil {
			return nil, fmt.Errorf("ledger: scanning entry: %w", err)
		}

		e.RemotePath = p
		out = append(out, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating entries: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry reads the value columns of an entry, preceded by any extra
// destinations in lead.
func scanEntry(row scanner, remotePath string, lead ...any) (*Entry, error) {
	var (
		e        = Entry{RemotePath: remotePath}
		remoteID sql.NullString
		mtime    sql.NullInt64
		updated  int64
	)

	dest := append(lead, &e.ETag, &remoteID, &mtime, &e.Size, &updated)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e.RemoteID = remoteID.String
	if mtime.Valid {
		e.ModTime = time.Unix(0, mtime.Int64)
	}

	e.UpdatedAt = time.Unix(0, updated)

	return &e, nil
}

// Forget drops the entry for remotePath and every entry below it, so a
// removed or moved folder takes its contents with it. Returns the number
// of entries removed.
func (s *Store) Forget(ctx context.Context, remotePath string) (int64, error) {
	prefix := strings.TrimSuffix(remotePath, "/") + "/"

	res, err := s.db.ExecContext(ctx, sqlForgetTree, s.account, remotePath, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("ledger: forgetting %s: %w", remotePath, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: forgetting %s: %w", remotePath, err)
	}

	if n > 0 {
		s.logger.Debug("ledger entries forgotten", slog.String("path", remotePath), slog.Int64("count", n))
	}

	return n, nil
}

// Len returns how many entries the account has.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCountEntries, s.account).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: counting entries: %w", err)
	}

	return n, nil
}
