package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THL-Leo/llmail/internal/database"
)

// DB is the subset of pgxpool.Pool the provisioner needs. Tests provide a
// fake.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Identity is what the OAuth provider tells us about the signed-in user.
type Identity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// Profile is the stored profiles row.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provisioner creates profile rows on first sign-in.
type Provisioner struct {
	db DB
}

func NewProvisioner(db DB) *Provisioner {
	return &Provisioner{db: db}
}

// Ensure makes certain a profiles row exists for the identity. An existing
// row is left untouched: fields are not synced on repeat sign-ins. A
// concurrent insert losing the race (unique violation) counts as success.
// The returned bool reports whether a row was created.
func (p *Provisioner) Ensure(ctx context.Context, id Identity) (bool, error) {
	if id.ID == "" {
		return false, fmt.Errorf("identity has no subject id")
	}

	var existing string
	err := p.db.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1`, id.ID).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("check profile %s: %w", id.ID, err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, id.ID, id.Email, nullable(id.Name), nullable(id.AvatarURL))
	if err != nil {
		// Lost a race against a concurrent first sign-in; the row exists,
		// which is all Ensure promises.
		if database.Is(err, database.KindUniqueViolation) {
			return false, nil
		}
		return false, fmt.Errorf("insert profile %s: %w", id.ID, err)
	}

	return true, nil
}

// Get returns the stored profile for a user id.
func (p *Provisioner) Get(ctx context.Context, id string) (*Profile, error) {
	var prof Profile
	err := p.db.QueryRow(ctx, `
		SELECT id, email, full_name, avatar_url, created_at, updated_at
		FROM profiles WHERE id = $1
	`, id).Scan(&prof.ID, &prof.Email, &prof.FullName, &prof.AvatarURL, &prof.CreatedAt, &prof.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &prof, nil
}

// GetWithUserContext reads the profile inside an RLS transaction so the
// per-user policies on profiles are enforced for the read.
func GetWithUserContext(ctx context.Context, pool *pgxpool.Pool, uc database.UserContext) (*Profile, error) {
	return database.WithUserContext(ctx, pool, uc, func(tx pgx.Tx) (*Profile, error) {
		var prof Profile
		err := tx.QueryRow(ctx, `
			SELECT id, email, full_name, avatar_url, created_at, updated_at
			FROM profiles WHERE id = $1
		`, uc.UserID).Scan(&prof.ID, &prof.Email, &prof.FullName, &prof.AvatarURL, &prof.CreatedAt, &prof.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("get profile %s: %w", uc.UserID, err)
		}
		return &prof, nil
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
