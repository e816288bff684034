package postgres

import (
	"math/big"
	"strings"
	"testing"

	"typeprobe/internal/schema"
	"typeprobe/internal/storage"
)

func TestBuildCreateSQL_QualifiedName_CreatesSchema(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "public.items",
		Columns: []storage.ColumnSpec{
			{Name: "ID", Type: schema.Byte},
			{Name: "QTY", Type: schema.Int32},
			{Name: "PRICE", Type: schema.Float64},
			{Name: "BIG", Type: schema.BigInteger},
			{Name: "NOTE", Type: schema.Text},
		},
	}

	schemaSQL, baseSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "public";` {
		t.Fatalf("unexpected schemaSQL: %q", schemaSQL)
	}
	want := `CREATE TABLE IF NOT EXISTS "public"."items" ("ID" smallint, "QTY" integer, "PRICE" double precision, "BIG" numeric, "NOTE" text);`
	if baseSQL != want {
		t.Fatalf("baseSQL = %q, want %q", baseSQL, want)
	}
}

func TestBuildCreateSQL_Unqualified_NoSchema(t *testing.T) {
	t.Parallel()

	stmts, err := DDL(storage.TableSpec{Name: "items", Columns: []storage.ColumnSpec{{Name: "A", Type: schema.Float32}}})
	if err != nil {
		t.Fatalf("DDL: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d: %v", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], `"A" real`) {
		t.Fatalf("missing column definition: %q", stmts[0])
	}
}

func TestBuildCreateSQL_RejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	if _, _, err := buildCreateSQL(storage.TableSpec{Name: "t"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   schema.Rung
		want string
	}{
		{schema.Byte, "smallint"},
		{schema.Short, "smallint"},
		{schema.Int32, "integer"},
		{schema.Int64, "bigint"},
		{schema.BigInteger, "numeric"},
		{schema.Float32, "real"},
		{schema.Float64, "double precision"},
		{schema.BigDecimal, "numeric"},
		{schema.Text, "text"},
	}
	for _, tt := range tests {
		if got := columnType(tt.in); got != tt.want {
			t.Fatalf("columnType(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildInsertSQL_NumbersPlaceholdersAndConvertsValues(t *testing.T) {
	t.Parallel()

	n, _ := new(big.Int).SetString("99999999999999999999", 10)
	sql, args := buildInsertSQL("public.items", []string{"a", "b"}, [][]any{
		{int8(1), "x"},
		{n, nil},
	})

	want := `INSERT INTO "public"."items" ("a", "b") VALUES ($1, $2), ($3, $4);`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[0] != int64(1) {
		t.Fatalf("args[0] = %#v, want int64(1)", args[0])
	}
	if args[2] != "99999999999999999999" {
		t.Fatalf("args[2] = %#v, want decimal text", args[2])
	}
	if args[3] != nil {
		t.Fatalf("args[3] = %#v, want nil", args[3])
	}
}

func TestPgIdentEscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent = %q", got)
	}
}
