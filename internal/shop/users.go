package shop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User document fields
const (
	NameField     = "name"
	EmailField    = "email"
	PasswordField = "password"
	RoleField     = "role"
)

// Roles
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Login throttle defaults
const (
	DefaultMaxLoginFailures = 5
	DefaultLockoutWindow    = 15 * time.Minute
)

// UsersOptions configure a Users service
type UsersOptions struct {
	BcryptCost       int           // 0 selects bcrypt.DefaultCost
	MaxLoginFailures int           // Failures allowed per window, 0 selects the default
	LockoutWindow    time.Duration // Window counted from the first failure
}

// Users registers and authenticates shop users
type Users struct {
	coll        *collection.Collection
	failures    *cache.Cache // lower-cased email -> failed attempts
	cost        int
	maxFailures int
}

// NewUsers creates the service over the users collection
func NewUsers(coll *collection.Collection, opts UsersOptions) *Users {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MaxLoginFailures <= 0 {
		opts.MaxLoginFailures = DefaultMaxLoginFailures
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = DefaultLockoutWindow
	}
	return &Users{
		coll:        coll,
		failures:    cache.New(opts.LockoutWindow, 2*opts.LockoutWindow),
		cost:        opts.BcryptCost,
		maxFailures: opts.MaxLoginFailures,
	}
}

// Public returns a copy of a user document without the password hash
func Public(user collection.Document) collection.Document {
	if user == nil {
		return nil
	}
	out := user.Clone()
	delete(out, PasswordField)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailOf(d collection.Document) string {
	s, _ := d[EmailField].(string)
	return normalizeEmail(s)
}

// findByEmail scans for an email match; stored emails may predate normalization
func findByEmail(docs []collection.Document, email, exceptID string) collection.Document {
	for _, d := range docs {
		if d.ID() != exceptID && emailOf(d) == email {
			return d
		}
	}
	return nil
}

// Register creates a user with a bcrypt password hash. Emails are unique
// regardless of case. An empty role selects RoleUser.
func (u *Users) Register(name, email, password, role string) (collection.Document, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email: %w", ErrMissingField)
	}
	if password == "" {
		return nil, fmt.Errorf("password: %w", ErrMissingField)
	}
	if role == "" {
		role = RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created collection.Document
	err = retryOnConflict("register", func() error {
		return u.coll.Tx(func(tx *collection.Tx) error {
			return insertUnique(tx, name, email, string(hash), role, &created)
		})
	})
	if err != nil {
		return nil, err
	}
	zap.S().Infow("User registered", "id", created.ID(), "role", role)
	return Public(created), nil
}

// insertUnique creates the user unless the email is taken
func insertUnique(tx *collection.Tx, name, email, hash, role string, created *collection.Document) error {
	all, err := tx.Find(nil)
	if err != nil {
		return err
	}
	if findByEmail(all, email, "") != nil {
		return fmt.Errorf("%s: %w", email, ErrEmailTaken)
	}
	*created, err = tx.Create(map[string]any{
		NameField:     name,
		EmailField:    email,
		PasswordField: hash,
		RoleField:     role,
	})
	return err
}

// FindByEmail returns the public view of the user with the email, or nil
func (u *Users) FindByEmail(email string) (collection.Document, error) {
	all, err := u.coll.Find(nil)
	if err != nil {
		return nil, err
	}
	return Public(findByEmail(all, normalizeEmail(email), "")), nil
}

// List returns the public view of every user
func (u *Users) List() ([]collection.Document, error) {
	all, err := u.coll.Find(nil)
	if err != nil {
		return nil, err
	}
	for i, d := range all {
		all[i] = Public(d)
	}
	return all, nil
}

// Get returns the public view of the user, or nil
func (u *Users) Get(id string) (collection.Document, error) {
	d, err := u.coll.FindByID(id)
	if err != nil {
		return nil, err
	}
	return Public(d), nil
}

// Authenticate checks the password and returns the public user.
// After MaxLoginFailures failed attempts for an email, every attempt fails
// with ErrTooManyAttempts until the window since the first failure has passed.
func (u *Users) Authenticate(email, password string) (collection.Document, error) {
	key := normalizeEmail(email)
	if n, ok := u.failures.Get(key); ok && n.(int) >= u.maxFailures {
		return nil, ErrTooManyAttempts
	}

	all, err := u.coll.Find(nil)
	if err != nil {
		return nil, err
	}
	user := findByEmail(all, key, "")
	if user == nil {
		u.recordFailure(key)
		return nil, ErrInvalidCredentials
	}
	hash, _ := user[PasswordField].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			zap.S().Warnw("Stored password hash is unusable", "id", user.ID(), "error", err)
		}
		u.recordFailure(key)
		return nil, ErrInvalidCredentials
	}

	u.failures.Delete(key)
	return Public(user), nil
}

func (u *Users) recordFailure(key string) {
	if err := u.failures.Add(key, 1, cache.DefaultExpiration); err != nil {
		_, _ = u.failures.IncrementInt(key, 1)
	}
}

// UpdateProfile changes the name and/or email; empty values are left as is.
// Returns nil if the user does not exist and ErrEmailTaken if another user
// has the new email.
func (u *Users) UpdateProfile(id, name, email string) (collection.Document, error) {
	email = normalizeEmail(email)
	var updated collection.Document
	err := u.coll.Tx(func(tx *collection.Tx) error {
		if tx.FindByID(id) == nil {
			return nil
		}
		if email != "" {
			all, err := tx.Find(nil)
			if err != nil {
				return err
			}
			if findByEmail(all, email, id) != nil {
				return fmt.Errorf("%s: %w", email, ErrEmailTaken)
			}
		}

		patch := map[string]any{}
		if name != "" {
			patch[NameField] = name
		}
		if email != "" {
			patch[EmailField] = email
		}
		var err error
		updated, err = tx.Update(id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Public(updated), nil
}

// ChangePassword replaces the password hash after checking the current
// password. Returns false if the user does not exist and
// ErrInvalidCredentials if oldPassword does not match.
func (u *Users) ChangePassword(id, oldPassword, newPassword string) (bool, error) {
	if newPassword == "" {
		return false, fmt.Errorf("new password: %w", ErrMissingField)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), u.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	found := false
	err = u.coll.Tx(func(tx *collection.Tx) error {
		user := tx.FindByID(id)
		if user == nil {
			return nil
		}
		found = true
		current, _ := user[PasswordField].(string)
		if err := bcrypt.CompareHashAndPassword([]byte(current), []byte(oldPassword)); err != nil {
			return ErrInvalidCredentials
		}
		_, err := tx.Update(id, map[string]any{PasswordField: string(hash)})
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}
