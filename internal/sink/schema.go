package sink

import (
	"fmt"
	"strings"
)

// Schema describes the tabular representation. It is configuration-driven
// with a hard-coded fallback applied when the configured schema is absent
// or invalid.
type Schema struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column is one column definition of the tabular schema.
type Column struct {
	Name       string
	Definition string
}

// Index is one secondary index of the tabular schema.
type Index struct {
	Name   string
	Column string
}

// DefaultSchema is the fallback schema used when configuration is absent
// or fails validation.
func DefaultSchema() Schema {
	return Schema{
		Name: "names",
		Columns: []Column{
			{Name: "id", Definition: "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{Name: "english_name", Definition: "TEXT NOT NULL"},
			{Name: "arabic_name", Definition: "TEXT"},
			{Name: "meaning", Definition: "TEXT"},
			{Name: "url", Definition: "TEXT"},
			{Name: "gender", Definition: "TEXT NOT NULL"},
			{Name: "created_at", Definition: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
		Indexes: []Index{
			{Name: "idx_english_name", Column: "english_name"},
			{Name: "idx_gender", Column: "gender"},
			{Name: "idx_arabic_name", Column: "arabic_name"},
		},
	}
}

// Validate rejects schemas that cannot be rendered into safe DDL.
func (s Schema) Validate() error {
	if !validIdent(s.Name) {
		return fmt.Errorf("invalid table name %q", s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	for _, col := range s.Columns {
		if !validIdent(col.Name) {
			return fmt.Errorf("invalid column name %q", col.Name)
		}
		if strings.TrimSpace(col.Definition) == "" {
			return fmt.Errorf("column %q has empty definition", col.Name)
		}
	}
	for _, idx := range s.Indexes {
		if !validIdent(idx.Name) || !validIdent(idx.Column) {
			return fmt.Errorf("invalid index %q on %q", idx.Name, idx.Column)
		}
	}
	return nil
}

// createTableSQL renders the CREATE TABLE statement.
func (s Schema) createTableSQL() string {
	parts := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		parts = append(parts, fmt.Sprintf("%s %s", col.Name, strings.TrimSpace(col.Definition)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.Name, strings.Join(parts, ", "))
}

// createIndexSQL renders the CREATE INDEX statements.
func (s Schema) createIndexSQL() []string {
	stmts := make([]string, 0, len(s.Indexes))
	for _, idx := range s.Indexes {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.Name, s.Name, idx.Column,
		))
	}
	return stmts
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
