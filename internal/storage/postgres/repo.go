package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"typeprobe/internal/schema"
	"typeprobe/internal/storage"
)

// maxParams is the extended protocol's bind parameter limit.
const maxParams = 65535

func init() {
	storage.Register("postgres", New, DDL)
}

/*
Repo implements storage.Repository for Postgres.

Inserts are plain multi-row INSERT statements chunked below the bind
parameter limit. Arbitrary precision values arrive as decimal text and are
cast by the server into numeric columns.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed Repo and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (when qualified) and the table.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	stmts, err := DDL(t)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// InsertRows inserts rows in a single transaction so a failed chunk leaves
// nothing behind.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var total int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams) {
			sql, args := buildInsertSQL(table, columns, chunk)
			cmd, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return err
			}
			total += cmd.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: insert into %s: %w", table, err)
	}
	return total, nil
}

// DDL returns the statements EnsureTable executes for t.
func DDL(t storage.TableSpec) ([]string, error) {
	schemaSQL, baseSQL, err := buildCreateSQL(t)
	if err != nil {
		return nil, err
	}
	if schemaSQL == "" {
		return []string{baseSQL}, nil
	}
	return []string{schemaSQL, baseSQL}, nil
}

// columnType maps a rung to a Postgres type. Postgres has no one-byte
// integer, so Byte shares smallint with Short.
func columnType(r schema.Rung) string {
	switch r {
	case schema.Byte, schema.Short:
		return "smallint"
	case schema.Int32:
		return "integer"
	case schema.Int64:
		return "bigint"
	case schema.BigInteger, schema.BigDecimal:
		return "numeric"
	case schema.Float32:
		return "real"
	case schema.Float64:
		return "double precision"
	default:
		return "text"
	}
}

// buildCreateSQL builds DDL for the optional schema and the table.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", fmt.Errorf("postgres: %w", err)
	}

	if ns, _ := storage.SplitQualifiedName(t.Name); ns != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(ns))
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(c.Name), columnType(c.Type)))
	}
	baseSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, pgTableIdent(t.Name), strings.Join(cols, ", "))
	return schemaSQL, baseSQL, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// It is pure and deterministic, so placeholder numbering can be unit tested
// without a database. Every row must have len(columns) values.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, storage.DriverValue(row[j]))
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// pgTableIdent quotes a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	if ns, table := storage.SplitQualifiedName(name); ns != "" {
		return pgx.Identifier{ns, table}.Sanitize()
	}
	return pgIdent(strings.TrimSpace(name))
}
