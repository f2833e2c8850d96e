package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername = "MEDIACRAWL_USERNAME"
	EnvPassword = "MEDIACRAWL_PASSWORD"
)

// EnvironmentStore is a read-only CredentialStore over environment variables.
// Without MEDIACRAWL_USERNAME the password applies to any username.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	password := os.Getenv(EnvPassword)
	if password == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv(EnvUsername)
	switch {
	case envUser != "" && username != "" && envUser != username:
		return nil, ErrCredentialsNotFound
	case envUser != "":
		username = envUser
	case username == "":
		username = "default"
	}

	return &Account{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment holds a password
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
