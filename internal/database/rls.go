package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserContext is the identity applied to a row-level-security transaction.
// Policies on profiles match against request.jwt.claim.sub.
type UserContext struct {
	UserID string
	Email  string
	Role   string // defaults to "authenticated"
}

// validRoleName ensures role names only contain safe characters (prevents SQL injection).
var validRoleName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithUserContext runs a callback within a transaction that has PostgreSQL
// RLS context set (role + JWT claims), so table policies are enforced for
// the given user.
func WithUserContext[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	uc UserContext,
	fn func(tx pgx.Tx) (T, error),
) (T, error) {
	var zero T

	role := uc.Role
	if role == "" {
		role = "authenticated"
	}

	// Validate role name to prevent SQL injection (SET LOCAL ROLE doesn't support $1)
	if !validRoleName.MatchString(role) {
		return zero, fmt.Errorf("invalid role name: %s", role)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Role names cannot be parameterized in SET LOCAL ROLE, so we validate via regex above
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL ROLE "%s"`, role)); err != nil {
		return zero, fmt.Errorf("set role %s: %w", role, err)
	}

	// Set full claims JSON using parameterized set_config() — safe from injection
	claims := map[string]string{"sub": uc.UserID, "email": uc.Email, "role": role}
	claimsJSON, _ := json.Marshal(claims)
	if _, err := tx.Exec(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, string(claimsJSON)); err != nil {
		return zero, fmt.Errorf("set jwt claims: %w", err)
	}

	// Set individual claims for convenience using parameterized set_config()
	if uc.UserID != "" {
		_, _ = tx.Exec(ctx, `SELECT set_config('request.jwt.claim.sub', $1, true)`, uc.UserID)
	}
	if uc.Email != "" {
		_, _ = tx.Exec(ctx, `SELECT set_config('request.jwt.claim.email', $1, true)`, uc.Email)
	}
	_, _ = tx.Exec(ctx, `SELECT set_config('request.jwt.claim.role', $1, true)`, role)

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit tx: %w", err)
	}

	return result, nil
}
