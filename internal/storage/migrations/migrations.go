// Package migrations applies the embedded schema for the journal and flow
// archive databases.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Dialect names a migration source directory.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	ClickHouse Dialect = "clickhouse"
)

//go:embed postgres/*.sql clickhouse/*.sql
var sources embed.FS

// errQuotedSemicolon marks a statement the splitter cannot handle.
var errQuotedSemicolon = errors.New("semicolon inside string literal")

// Migration is one SQL file split into statements. Version is the file name
// without extension; files apply in version order.
type Migration struct {
	Version    string
	Statements []string
}

// Load returns the embedded migrations for d.
func Load(d Dialect) ([]Migration, error) {
	return load(sources, string(d))
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	var out []Migration
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sql := string(data)
		if hasQuotedSemicolon(sql) {
			return nil, fmt.Errorf("migration %s: %w", name, errQuotedSemicolon)
		}
		stmts := splitStatements(sql)
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{
			Version:    strings.TrimSuffix(path.Base(name), ".sql"),
			Statements: stmts,
		})
	}
	return out, nil
}

// splitStatements drops "--" comment lines and splits on semicolons.
func splitStatements(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// hasQuotedSemicolon reports a ';' inside a single-quoted literal. A doubled
// quote is an escape and does not end the literal.
func hasQuotedSemicolon(sql string) bool {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return true
			}
		}
	}
	return false
}
