// Package identity supplies the current authenticated user to the sync
// core. Authentication itself happens elsewhere; this package only reads
// the session it leaves behind.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// User is the authenticated identity every remote operation is scoped to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider yields the current user. A nil user with a nil error means
// nobody is signed in; callers short-circuit with no side effect.
type Provider interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// FileProvider reads the session document the auth flow writes on login
// and removes on logout.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading the given session file.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// CurrentUser implements Provider. A missing session file means signed
// out, not an error.
func (p *FileProvider) CurrentUser(ctx context.Context) (*User, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

// Static is a fixed-identity provider, used by tests and one-shot CLI
// runs where the session is resolved up front.
type Static struct {
	User *User
}

// CurrentUser implements Provider.
func (s Static) CurrentUser(ctx context.Context) (*User, error) {
	return s.User, nil
}
