package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, firebase_uid, email, display_name, avatar_url, role::text, status,
	balance_cents, created_at, updated_at, last_login_at, deleted_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirebaseUID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.Status,
		&u.BalanceCents, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, uid))
}

// Upsert inserts the user on first sign-in or refreshes the profile fields
// and last_login_at on later ones. When the table is empty the new user gets
// firstRole. Returns true when a row was created.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User, firstRole models.Role) (bool, error) {
	created := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Serialises sign-ups so only one user can ever be first.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('users.bootstrap'))`); err != nil {
			return err
		}

		existing, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, u.FirebaseUID))
		if err != nil {
			return err
		}
		if existing != nil {
			updated, err := scanUser(tx.QueryRow(ctx, `
				UPDATE users SET
					email = CASE WHEN $2 = '' THEN email ELSE $2 END,
					display_name = CASE WHEN display_name = '' THEN $3 ELSE display_name END,
					avatar_url = COALESCE(avatar_url, $4),
					last_login_at = NOW(), updated_at = NOW()
				WHERE id = $1
				RETURNING `+userColumns, existing.ID, u.Email, u.DisplayName, u.AvatarURL))
			if err != nil {
				return err
			}
			*u = *updated
			return nil
		}

		var count int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return err
		}
		u.Prepare()
		if count == 0 {
			u.Role = firstRole
		}

		inserted, err := scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (id, firebase_uid, email, display_name, avatar_url, role, status, last_login_at)
			VALUES ($1, $2, $3, $4, $5, $6::text::user_role_t, $7, NOW())
			RETURNING `+userColumns,
			u.ID, u.FirebaseUID, u.Email, u.DisplayName, u.AvatarURL, string(u.Role), string(u.Status)))
		if err != nil {
			return err
		}
		*u = *inserted
		created = true
		return nil
	})
	return created, err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, displayName *string, avatarURL *string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+userColumns, id, displayName, avatarURL))
}

// UpdateAccess changes role and/or status. Nil leaves the field unchanged.
func (r *UserRepository) UpdateAccess(ctx context.Context, id uuid.UUID, role *models.Role, status *models.UserStatus) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET
			role = COALESCE($2::text::user_role_t, role),
			status = COALESCE($3, status),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+userColumns, id, role, status))
}

func (r *UserRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET deleted_at = NOW(), status = 'suspended', updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, f models.UserFilter) ([]models.User, int64, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Role != "" {
		conds = append(conds, "role::text = "+arg(string(f.Role)))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(string(f.Status)))
	}
	if f.Query != "" {
		p := arg(likePattern(f.Query))
		conds = append(conds, fmt.Sprintf("(email ILIKE %s OR display_name ILIKE %s)", p, p))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// FindAdmins returns active admins, used to route support notifications.
func (r *UserRepository) FindAdmins(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE role = 'admin' AND status = 'active' AND deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
