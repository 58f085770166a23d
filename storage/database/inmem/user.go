package inmemdb

import (
	"context"

	"github.com/collegepense/pense/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range repo.db.table {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// only save set fields
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		origUsr.LastLogin = usr.LastLogin
	}
	if !usr.UpdatedAt.IsZero() {
		origUsr.UpdatedAt = usr.UpdatedAt
	}
	origUsr.Name = usr.Name
	origUsr.Email = usr.Email
	origUsr.IsActive = usr.IsActive
	return *origUsr, nil
}

func (repo *userRepository) CreateRefreshToken(_ context.Context, tok user.RefreshToken) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.refresh[tok.Token] = &tok
	return nil
}

func (repo *userRepository) GetRefreshToken(_ context.Context, token string) (user.RefreshToken, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tok, ok := repo.db.refresh[token]; ok {
		return *tok, nil
	}
	return user.RefreshToken{}, user.ErrNotFound
}

func (repo *userRepository) RevokeRefreshToken(_ context.Context, token string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if tok, ok := repo.db.refresh[token]; ok {
		tok.Revoked = true
	}
	return nil
}

func (repo *userRepository) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, tok := range repo.db.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}
