package sqlassets

// utilityFallbackSQL is a hardcoded copy of the core helper functions,
// returned when an embedded asset is unexpectedly empty. It keeps the
// admin UI usable even with a broken asset bundle.
const utilityFallbackSQL = `-- Utility functions (fallback copy).

CREATE OR REPLACE FUNCTION has_rls_enabled(target_table TEXT)
RETURNS BOOLEAN
LANGUAGE sql
SECURITY DEFINER
AS $$
  SELECT COALESCE(
    (SELECT c.relrowsecurity
     FROM pg_class c
     JOIN pg_namespace n ON n.oid = c.relnamespace
     WHERE n.nspname = 'public' AND c.relname = target_table),
    FALSE
  );
$$;

CREATE OR REPLACE FUNCTION list_tables()
RETURNS TABLE(table_name TEXT)
LANGUAGE sql
SECURITY DEFINER
AS $$
  SELECT c.relname::TEXT
  FROM pg_class c
  JOIN pg_namespace n ON n.oid = c.relnamespace
  WHERE n.nspname = 'public' AND c.relkind = 'r'
  ORDER BY c.relname;
$$;

CREATE OR REPLACE FUNCTION get_all_policies()
RETURNS TABLE(
  table_name TEXT,
  policy_name TEXT,
  command TEXT,
  using_expression TEXT,
  with_check_expression TEXT
)
LANGUAGE sql
SECURITY DEFINER
AS $$
  SELECT
    p.tablename::TEXT,
    p.policyname::TEXT,
    p.cmd::TEXT,
    p.qual::TEXT,
    p.with_check::TEXT
  FROM pg_policies p
  WHERE p.schemaname = 'public'
  ORDER BY p.tablename, p.policyname;
$$;
`
