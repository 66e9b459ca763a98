package pipeline

import (
	"errors"
	"testing"
)

func TestExtractSQLFromFencedBlock(t *testing.T) {
	out, err := ExtractSQL("```sql\nSELECT 1;\n```")
	if err != nil {
		t.Fatalf("ExtractSQL() error = %v", err)
	}
	if out != "SELECT 1;" {
		t.Fatalf("ExtractSQL() = %q", out)
	}
}

func TestExtractSQLDropsLeadingProse(t *testing.T) {
	raw := "Here is the query you asked for:\n\nSELECT name FROM region ORDER BY name"
	out, err := ExtractSQL(raw)
	if err != nil {
		t.Fatalf("ExtractSQL() error = %v", err)
	}
	if out != "SELECT name FROM region ORDER BY name" {
		t.Fatalf("ExtractSQL() = %q", out)
	}
}

func TestExtractSQLFencedWithProseAround(t *testing.T) {
	raw := "Sure!\n```sql\nWITH t AS (SELECT 1 AS x) SELECT x FROM t\n```\nLet me know if that works."
	out, err := ExtractSQL(raw)
	if err != nil {
		t.Fatalf("ExtractSQL() error = %v", err)
	}
	if out != "WITH t AS (SELECT 1 AS x) SELECT x FROM t" {
		t.Fatalf("ExtractSQL() = %q", out)
	}
}

func TestExtractSQLIsIdempotent(t *testing.T) {
	clean := "SELECT r.name, SUM(s.amount) AS total FROM sales s JOIN region r ON s.region_id = r.id GROUP BY r.name"
	once, err := ExtractSQL(clean)
	if err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	twice, err := ExtractSQL(once)
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if once != clean || twice != once {
		t.Fatalf("not idempotent: %q -> %q -> %q", clean, once, twice)
	}
}

func TestExtractSQLReturnsErrNoSQLFound(t *testing.T) {
	for _, raw := range []string{
		"",
		"   \n\t",
		"I cannot answer that question with the given schema.",
		"```\nnothing to see here\n```",
	} {
		if _, err := ExtractSQL(raw); !errors.Is(err, ErrNoSQLFound) {
			t.Fatalf("ExtractSQL(%q) error = %v, want ErrNoSQLFound", raw, err)
		}
	}
}

func TestExtractSQLRecognizesOtherStatementKinds(t *testing.T) {
	for raw, want := range map[string]string{
		"EXPLAIN SELECT 1":            "EXPLAIN SELECT 1",
		"the plan:\nEXPLAIN SELECT 1": "EXPLAIN SELECT 1",
		"DESCRIBE sales":              "DESCRIBE sales",
		"VALUES (1, 'a')":             "VALUES (1, 'a')",
		"```\nSHOW TABLES\n```":       "SHOW TABLES",
		"lowercase works: select 1":   "select 1",
	} {
		got, err := ExtractSQL(raw)
		if err != nil {
			t.Fatalf("ExtractSQL(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ExtractSQL(%q) = %q, want %q", raw, got, want)
		}
	}
}
