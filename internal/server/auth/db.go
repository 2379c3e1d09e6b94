package auth

import "dev.c0redev.fshare/internal/store"

// DBStore checks credentials against bcrypt hashes in the sqlite users table.
type DBStore struct {
	DB *store.DB
}

// NewDBStore returns DBStore over db.
func NewDBStore(db *store.DB) *DBStore {
	return &DBStore{DB: db}
}

// Authenticate looks up user by login and verifies the stored hash.
func (s *DBStore) Authenticate(user, password string) (bool, error) {
	if user == "" || password == "" {
		return false, nil
	}
	u, err := s.DB.UserByLogin(user)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	return CheckPassword(password, u.PasswordHash), nil
}

// Chain tries each Authenticator in order; first true wins.
type Chain []Authenticator

// Authenticate returns true on first accepting store; store errors are
// returned only if no store accepted.
func (c Chain) Authenticate(user, password string) (bool, error) {
	var firstErr error
	for _, a := range c {
		ok, err := a.Authenticate(user, password)
		if ok {
			return true, nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return false, firstErr
}
