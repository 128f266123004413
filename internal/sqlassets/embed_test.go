package sqlassets

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Embedded assets
// ---------------------------------------------------------------------------

func TestAssets_NotEmpty(t *testing.T) {
	assets := map[string]string{
		"schema.sql":              SchemaSQL,
		"simplified-schema.sql":   SimplifiedSchemaSQL,
		"production-policies.sql": ProductionPoliciesSQL,
		"utility-functions.sql":   UtilityFunctionsSQL,
	}
	for name, sql := range assets {
		if strings.TrimSpace(sql) == "" {
			t.Errorf("asset %s is empty", name)
		}
	}
}

func TestSchemaSQL_CoversRequiredTables(t *testing.T) {
	for _, table := range []string{"profiles", "email_accounts", "emails", "email_classifications"} {
		if !strings.Contains(SchemaSQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema.sql missing table %s", table)
		}
		if !strings.Contains(SchemaSQL, "ALTER TABLE "+table+" ENABLE ROW LEVEL SECURITY") {
			t.Errorf("schema.sql does not enable RLS on %s", table)
		}
	}
}

func TestUtilityFunctionsSQL_DefinesHelpers(t *testing.T) {
	for _, fn := range []string{"has_rls_enabled", "list_tables", "get_all_policies", "apply_production_policies"} {
		if !strings.Contains(UtilityFunctionsSQL, fn) {
			t.Errorf("utility-functions.sql missing %s", fn)
		}
	}
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func TestSchema_Selection(t *testing.T) {
	tests := []struct {
		schemaType string
		file       string
		want       string
	}{
		{"full", "schema.sql", SchemaSQL},
		{"simplified", "simplified-schema.sql", SimplifiedSchemaSQL},
		{"", "schema.sql", SchemaSQL},
		{"bogus", "schema.sql", SchemaSQL},
	}

	for _, tt := range tests {
		sql, file := Schema(tt.schemaType)
		if file != tt.file {
			t.Errorf("Schema(%q): expected file %q, got %q", tt.schemaType, tt.file, file)
		}
		// Byte-for-byte the embedded asset, no rewriting on the way out
		if sql != tt.want {
			t.Errorf("Schema(%q): response text diverges from the embedded asset", tt.schemaType)
		}
	}
}

// ---------------------------------------------------------------------------
// Helper
// ---------------------------------------------------------------------------

func TestHelper_Selection(t *testing.T) {
	sql, resolved := Helper("policies")
	if resolved != "policies" || sql != ProductionPoliciesSQL {
		t.Error("Helper(policies) should return the production policies asset")
	}

	sql, resolved = Helper("utility")
	if resolved != "utility" || sql != UtilityFunctionsSQL {
		t.Error("Helper(utility) should return the utility functions asset")
	}

	// Unknown types resolve to utility
	sql, resolved = Helper("whatever")
	if resolved != "utility" || sql != UtilityFunctionsSQL {
		t.Error("unknown helper type should resolve to utility")
	}
}

func TestFallback_DefinesCoreHelpers(t *testing.T) {
	for _, fn := range []string{"has_rls_enabled", "list_tables", "get_all_policies"} {
		if !strings.Contains(utilityFallbackSQL, fn) {
			t.Errorf("fallback SQL missing %s", fn)
		}
	}
}
