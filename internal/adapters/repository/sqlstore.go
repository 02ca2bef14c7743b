package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/okian/zcalc/internal/domain/model"
)

//go:embed sql/ddl.sql
var ddlTemplate string

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore reads reference rows from a SQL table keyed by (attribute, agemos, sex).
// Values are stored as text so that malformed rows are detected on read
// instead of being coerced by the database.
type SQLStore struct {
	db     *sqlx.DB
	table  string
	fetchQ string
	upsert string
}

type referenceRow struct {
	L sql.NullString `db:"l"`
	M sql.NullString `db:"m"`
	S sql.NullString `db:"s"`
}

// OpenSQL connects to a sqlite or postgres database.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q is not a SQL driver", ErrUnknownDriver, driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if newOptions(opts).ensureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB, opts ...Option) (*SQLStore, error) {
	o := newOptions(opts)
	if !tableNameRe.MatchString(o.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, o.table)
	}
	return &SQLStore{
		db:    db,
		table: o.table,
		fetchQ: db.Rebind(fmt.Sprintf(
			"SELECT l, m, s FROM %s WHERE attribute = ? AND agemos = ? AND sex = ?", o.table)),
		upsert: db.Rebind(fmt.Sprintf(
			"INSERT INTO %s (attribute, agemos, sex, l, m, s) VALUES (?, ?, ?, ?, ?, ?) "+
				"ON CONFLICT (attribute, agemos, sex) DO UPDATE SET l = excluded.l, m = excluded.m, s = excluded.s", o.table)),
	}, nil
}

// EnsureSchema creates the reference table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := strings.ReplaceAll(ddlTemplate, "{{table}}", s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Fetch implements Store.
func (s *SQLStore) Fetch(ctx context.Context, attribute model.Attribute, key model.ReferenceKey) (model.ReferenceParameters, error) {
	var row referenceRow
	err := s.db.GetContext(ctx, &row, s.fetchQ, string(attribute), key.AgeMonths, string(key.Sex))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReferenceParameters{}, notFound(attribute, key)
	}
	if err != nil {
		return model.ReferenceParameters{}, fmt.Errorf("%w: %s lookup: %v", ErrUnavailable, s.Name(), err)
	}

	fields := make(map[string]string, 3)
	for name, v := range map[string]sql.NullString{FieldL: row.L, FieldM: row.M, FieldS: row.S} {
		if v.Valid {
			fields[name] = v.String
		}
	}
	return parseRecord(attribute, key, fields)
}

// Upsert implements Writer. All rows are written in one transaction; on any
// failure nothing is written and the count is zero.
func (s *SQLStore) Upsert(ctx context.Context, attribute model.Attribute, rows []Row) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, s.upsert)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, string(attribute), r.Key.AgeMonths, string(r.Key.Sex), r.L, r.M, r.S); err != nil {
			return 0, fmt.Errorf("upsert %s at %s (row %d): %w", attribute, r.Key, i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(rows), nil
}

// Name implements Store and reports the database driver.
func (s *SQLStore) Name() string { return s.db.DriverName() }

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }
