// Package sqlassets provides the embedded SQL delivered by the admin
// endpoints. The app never executes this DDL itself; an operator pastes it
// into the SQL console of the database host.
package sqlassets

import (
	_ "embed"
)

// SchemaSQL is the full application schema with development policies.
//
//go:embed schema.sql
var SchemaSQL string

// SimplifiedSchemaSQL is the minimal schema for sign-in and profile
// provisioning only.
//
//go:embed simplified-schema.sql
var SimplifiedSchemaSQL string

// ProductionPoliciesSQL replaces the development policies with the
// per-user production set.
//
//go:embed production-policies.sql
var ProductionPoliciesSQL string

// UtilityFunctionsSQL installs the introspection helper functions
// (has_rls_enabled, list_tables, get_all_policies, apply_production_policies).
//
//go:embed utility-functions.sql
var UtilityFunctionsSQL string

// Schema returns the schema text and source file name for a requested
// schema type. Anything other than "simplified" yields the full schema.
func Schema(schemaType string) (sql, file string) {
	if schemaType == "simplified" {
		return SimplifiedSchemaSQL, "simplified-schema.sql"
	}
	return SchemaSQL, "schema.sql"
}

// Helper returns the helper SQL for a requested type. "policies" yields the
// production policies; anything else yields the utility functions. An empty
// embedded asset falls back to the hardcoded copy so the admin UI always
// has something to show.
func Helper(helperType string) (sql, resolved string) {
	if helperType == "policies" {
		if ProductionPoliciesSQL == "" {
			return utilityFallbackSQL, "utility"
		}
		return ProductionPoliciesSQL, "policies"
	}
	if UtilityFunctionsSQL == "" {
		return utilityFallbackSQL, "utility"
	}
	return UtilityFunctionsSQL, "utility"
}
