package testutil

import (
	"database/sql"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/iliyamo/ticket-sales/internal/database"
)

var (
	createTableRe = regexp.MustCompile(`(?is)^CREATE TABLE(?: IF NOT EXISTS)?\s+(\w+)\s*\((.*)\)`)
	indexKeyRe    = regexp.MustCompile(`(?i)^KEY\s+(\w+)\s*\(`)
)

// mysqlTables returns, per table created by the embedded migrations, its
// column names and the names of its non-unique indexes.
func mysqlTables(t *testing.T) (map[string][]string, map[string][]string) {
	t.Helper()
	ms, err := database.Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	cols := map[string][]string{}
	idx := map[string][]string{}
	for _, m := range ms {
		for _, stmt := range m.Statements {
			match := createTableRe.FindStringSubmatch(strings.TrimSpace(stmt))
			if match == nil {
				continue
			}
			table := match[1]
			for _, line := range strings.Split(match[2], "\n") {
				line = strings.TrimSuffix(strings.TrimSpace(line), ",")
				if line == "" {
					continue
				}
				if k := indexKeyRe.FindStringSubmatch(line); k != nil {
					idx[table] = append(idx[table], k[1])
					continue
				}
				word := strings.ToUpper(strings.Fields(line)[0])
				if word == "UNIQUE" || word == "CONSTRAINT" || word == "PRIMARY" || word == "CHECK" {
					continue
				}
				cols[table] = append(cols[table], strings.Fields(line)[0])
			}
		}
	}
	return cols, idx
}

func TestSchemaMatchesMigrations(t *testing.T) {
	db := OpenDB(t)
	wantCols, wantIdx := mysqlTables(t)
	if len(wantCols) == 0 {
		t.Fatal("no CREATE TABLE statement found in migrations")
	}

	tables := queryNames(t, db, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	var migrated []string
	for name := range wantCols {
		migrated = append(migrated, name)
	}
	slices.Sort(migrated)
	if !slices.Equal(tables, migrated) {
		t.Fatalf("sqlite tables = %v, migration tables = %v", tables, migrated)
	}

	for _, table := range tables {
		got := queryNames(t, db, `SELECT name FROM pragma_table_info(?)`, table)
		want := slices.Clone(wantCols[table])
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Errorf("%s columns: sqlite %v, migration %v", table, got, want)
		}

		got = queryNames(t, db,
			`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_autoindex%'`, table)
		want = slices.Clone(wantIdx[table])
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Errorf("%s indexes: sqlite %v, migration %v", table, got, want)
		}
	}
}

func queryNames(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.Query(query, args...)
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}
