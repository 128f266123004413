package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RequiredTables is the application schema checked by the status endpoints.
var RequiredTables = []string{"profiles", "email_accounts", "emails", "email_classifications"}

// Querier is the subset of pgxpool.Pool the Inspector needs. Tests provide
// a fake; production code passes a pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Inspector answers questions about the live database: which tables exist,
// whether row level security is on, and what policies are attached.
type Inspector struct {
	db Querier
}

func NewInspector(db Querier) *Inspector {
	return &Inspector{db: db}
}

// TableStatus reports existence of a single required table. Error carries a
// failed probe's message; when it is set the table was not confirmed absent.
type TableStatus struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// RLSStatus is the outcome of an RLS check for one table. Method records
// which probe produced the answer. A failed check sets Error and leaves
// Enabled meaningless; it is never reported as "RLS disabled".
type RLSStatus struct {
	Table   string `json:"table"`
	Enabled bool   `json:"rlsEnabled"`
	Method  string `json:"method,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Policy is one row level security policy on a table.
type Policy struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Using     string `json:"using"`
	WithCheck string `json:"withCheck"`
}

// TablePolicies groups policies by table.
type TablePolicies struct {
	Table       string   `json:"table"`
	Policies    []Policy `json:"policies"`
	HasPolicies bool     `json:"hasPolicies"`
}

// TableExists probes a table with a bounded single-row read. Only
// undefined_table counts as "missing". A connection-kind failure returns
// (false, err) since nothing could be confirmed; any other failure (say a
// permission error) returns (true, err) because the relation must exist for
// the database to reject the read that way.
func (ins *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	ident := pgx.Identifier{table}.Sanitize()
	rows, err := ins.db.Query(ctx, fmt.Sprintf(`SELECT id FROM %s LIMIT 1`, ident))
	if err != nil {
		return classifyProbe(table, err)
	}
	defer rows.Close()
	rows.Next()
	if err := rows.Err(); err != nil {
		return classifyProbe(table, err)
	}
	return true, nil
}

func classifyProbe(table string, err error) (bool, error) {
	switch Classify(err) {
	case KindUndefinedTable:
		return false, nil
	case KindConnection:
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	return true, fmt.Errorf("probe table %s: %w", table, err)
}

// CheckTables probes every required table concurrently and reports each
// outcome independently. An error is returned only when every probe failed
// with a connection-class error, which means the database itself is down
// rather than the schema being incomplete.
func (ins *Inspector) CheckTables(ctx context.Context) ([]TableStatus, error) {
	statuses := make([]TableStatus, len(RequiredTables))

	var wg sync.WaitGroup
	for i, table := range RequiredTables {
		wg.Add(1)
		go func(i int, table string) {
			defer wg.Done()
			exists, err := ins.TableExists(ctx, table)
			st := TableStatus{Name: table, Exists: exists, Err: err}
			if err != nil {
				st.Error = err.Error()
			}
			statuses[i] = st
		}(i, table)
	}
	wg.Wait()

	connFailures := 0
	for _, st := range statuses {
		if st.Err != nil && Classify(st.Err) == KindConnection {
			connFailures++
		}
	}
	if connFailures == len(statuses) {
		return statuses, fmt.Errorf("database unreachable: %w", statuses[0].Err)
	}

	return statuses, nil
}

// ListTables returns every table in the public schema. It prefers the
// list_tables() helper and falls back to pg_tables when the helper is not
// installed.
func (ins *Inspector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := ins.collectNames(ctx, `SELECT table_name FROM list_tables()`)
	if err == nil {
		return tables, nil
	}

	tables, err = ins.collectNames(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (ins *Inspector) collectNames(ctx context.Context, sql string) ([]string, error) {
	rows, err := ins.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RLSEnabled checks whether row level security is active on a table. It
// prefers the has_rls_enabled() helper function and falls back to reading
// pg_class directly when the helper is not installed.
func (ins *Inspector) RLSEnabled(ctx context.Context, table string) RLSStatus {
	var enabled bool
	err := ins.db.QueryRow(ctx, `SELECT has_rls_enabled($1)`, table).Scan(&enabled)
	if err == nil {
		return RLSStatus{Table: table, Enabled: enabled, Method: "rpc_function"}
	}

	err = ins.db.QueryRow(ctx, `
		SELECT c.relrowsecurity
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relname = $1
	`, table).Scan(&enabled)
	if err == nil {
		return RLSStatus{Table: table, Enabled: enabled, Method: "pg_class_direct"}
	}

	return RLSStatus{Table: table, Error: fmt.Sprintf("check failed: %v", err)}
}

// CheckRLS runs RLSEnabled for every required table concurrently. A failure
// on one table never affects the others.
func (ins *Inspector) CheckRLS(ctx context.Context) []RLSStatus {
	statuses := make([]RLSStatus, len(RequiredTables))

	var wg sync.WaitGroup
	for i, table := range RequiredTables {
		wg.Add(1)
		go func(i int, table string) {
			defer wg.Done()
			statuses[i] = ins.RLSEnabled(ctx, table)
		}(i, table)
	}
	wg.Wait()

	return statuses
}

// Policies lists all RLS policies via the get_all_policies() helper,
// grouped per required table. There is deliberately no catalog fallback: if
// the helper is absent the caller reports that the utility functions need
// installing.
func (ins *Inspector) Policies(ctx context.Context) ([]TablePolicies, []Policy, error) {
	rows, err := ins.db.Query(ctx, `SELECT table_name, policy_name, command, using_expression, with_check_expression FROM get_all_policies()`)
	if err != nil {
		return nil, nil, fmt.Errorf("get_all_policies: %w", err)
	}
	defer rows.Close()

	byTable := make(map[string][]Policy)
	var all []Policy
	for rows.Next() {
		var table string
		var p Policy
		var using, withCheck *string
		if err := rows.Scan(&table, &p.Name, &p.Command, &using, &withCheck); err != nil {
			return nil, nil, fmt.Errorf("scan policy row: %w", err)
		}
		if using != nil {
			p.Using = *using
		}
		if withCheck != nil {
			p.WithCheck = *withCheck
		}
		byTable[table] = append(byTable[table], p)
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read policies: %w", err)
	}

	grouped := make([]TablePolicies, 0, len(RequiredTables))
	for _, table := range RequiredTables {
		policies := byTable[table]
		if policies == nil {
			policies = []Policy{}
		}
		grouped = append(grouped, TablePolicies{
			Table:       table,
			Policies:    policies,
			HasPolicies: len(policies) > 0,
		})
	}

	return grouped, all, nil
}

// ApplyProductionPolicies invokes the apply_production_policies() helper for
// one table. The helper replaces permissive development policies with the
// per-user production set.
func (ins *Inspector) ApplyProductionPolicies(ctx context.Context, table string) error {
	if _, err := ins.db.Exec(ctx, `SELECT apply_production_policies($1)`, table); err != nil {
		return fmt.Errorf("apply_production_policies(%s): %w", table, err)
	}
	return nil
}
