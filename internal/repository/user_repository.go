package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

var ErrDuplicateEmail = errors.New("user with this email already exists")

const userColumns = `id, name, email, password_hash, role, avatar, created_at, updated_at`

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// ListByRolePaginated lists users of one role, optionally filtered by a
// name/email search term.
func (r *UserRepository) ListByRolePaginated(ctx context.Context, role model.Role, search string, limit, offset int) ([]model.User, int, error) {
	where := ` WHERE role = $1`
	args := []any{role}
	if search != "" {
		where += ` AND (name ILIKE $2 OR email ILIKE $2)`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, role, avatar)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.Avatar,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapUniqueViolation(err)
}

// Update modifies a user's profile fields (excluding password and role).
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $1, email = $2, avatar = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING updated_at`,
		u.Name, u.Email, u.Avatar, u.ID,
	).Scan(&u.UpdatedAt)
	return mapUniqueViolation(err)
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	return nil
}

// Delete removes a user of the given role. Their enrollments and attempts
// are removed by cascade.
func (r *UserRepository) Delete(ctx context.Context, id int, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND role = $2`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return notFound(err)
}
