package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/collegepense/pense/core/user"
)

const uniqueViolation = "23505"

// userRow mirrors the professor table; last_login is nullable.
type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

const userColumns = "id, name, email, is_active, password_hash, created_at, updated_at, last_login"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM professor WHERE "+where, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting professor")
	}
	return row.toUser(), nil
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		ids = append(ids, usr.ID)
	}

	var count int
	q := "SELECT COUNT(*) FROM professor WHERE email = $1 AND NOT (id::text = ANY($2))"
	if err := repo.db.GetContext(ctx, &count, q, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO professor (` + userColumns + `)
		VALUES (:id, :name, :email, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting professor")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id::text = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1", email)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE professor SET
			name = :name,
			email = :email,
			is_active = :is_active,
			password_hash = :password_hash,
			updated_at = :updated_at,
			last_login = COALESCE(:last_login, last_login)
		WHERE id = :id`
	row := newUserRow(usr)
	if usr.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating professor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) CreateRefreshToken(ctx context.Context, tok user.RefreshToken) error {
	q := `INSERT INTO refresh_token (token, professor_id, issued_at, revoked) VALUES (:token, :professor_id, :issued_at, :revoked)`
	_, err := repo.db.NamedExecContext(ctx, q, tok)
	return errors.Wrap(err, "inserting refresh token")
}

func (repo *userRepository) GetRefreshToken(ctx context.Context, token string) (user.RefreshToken, error) {
	var tok user.RefreshToken
	q := "SELECT token, professor_id, issued_at, revoked FROM refresh_token WHERE token = $1"
	if err := repo.db.GetContext(ctx, &tok, q, token); err != nil {
		if err == sql.ErrNoRows {
			return user.RefreshToken{}, user.ErrNotFound
		}
		return user.RefreshToken{}, errors.Wrap(err, "selecting refresh token")
	}
	return tok, nil
}

func (repo *userRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE refresh_token SET revoked = true WHERE token = $1", token)
	return errors.Wrap(err, "revoking refresh token")
}

func (repo *userRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE refresh_token SET revoked = true WHERE professor_id = $1", userID)
	return errors.Wrap(err, "revoking user refresh tokens")
}
