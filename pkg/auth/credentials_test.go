package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"mediacrawl/pkg/config"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Username: "alice", Password: "correct horse battery"}
	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("alice")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account in list, got %d", len(accounts))
	}

	sanitized := SanitizeAccount(account)
	if sanitized.Password == account.Password {
		t.Error("Password should be masked")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	if err := manager.Delete("alice"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
	if err := manager.Delete("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound deleting twice, got %v", err)
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Account{Password: "x"}); err == nil {
		t.Error("Expected error for missing username")
	}
	if err := manager.Store(&Account{Username: "alice"}); err == nil {
		t.Error("Expected error for missing password")
	}
}

func TestManagerFallsThroughStores(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	fallback := NewMockStore()

	manager := NewManagerWithStores(failing, fallback)
	if err := manager.Store(&Account{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Store should fall back: %v", err)
	}
	if !fallback.Exists("alice") {
		t.Error("fallback store should hold the account")
	}
}

func TestResolvePassword(t *testing.T) {
	manager, store := NewMockManager()
	if err := store.Store(&Account{Username: "alice", Password: "from-store"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Username = "alice"

	password, err := manager.ResolvePassword(cfg)
	if err != nil {
		t.Fatalf("ResolvePassword failed: %v", err)
	}
	if password != "from-store" {
		t.Errorf("Expected store password, got %q", password)
	}
	if cfg.Password != "" {
		t.Error("resolved password must not be written back to the config")
	}

	cfg.Password = "from-file"
	if password, _ := manager.ResolvePassword(cfg); password != "from-file" {
		t.Errorf("Expected config password to win, got %q", password)
	}

	cfg.Password = ""
	cfg.Username = "bob"
	if _, err := manager.ResolvePassword(cfg); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{Username: "encrypted_user", Password: "encrypted_password"}
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Account{Username: "second", Password: "other"}); err != nil {
		t.Fatalf("Failed to store second account: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch after encryption/decryption")
	}

	fileContent, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(fileContent, []byte("encrypted_password")) {
		t.Error("File contains plaintext password")
	}

	// A different passphrase cannot open the file
	t.Setenv(EnvPassphrase, "wrong")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("encrypted_user"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected decryption error, got %v", err)
	}

	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("second"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be removed with the last account")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}
	if err := store.Store(&Account{Username: "alice", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("passphrase file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Exists("alice") {
		t.Error("reopened store should read the saved account")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvPassword, "env_password")
	t.Setenv(EnvUsername, "")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("alice")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Password != "env_password" || account.Username != "alice" {
		t.Errorf("unexpected account %+v", account)
	}

	t.Setenv(EnvUsername, "bob")
	if _, err := store.Retrieve("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound for another user, got %v", err)
	}
	if !store.Exists("bob") {
		t.Error("bob should exist")
	}

	if err := store.Store(&Account{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("mock keyring should be available: %v", err)
	}

	if err := store.Store(&Account{Username: "alice", Password: "kr"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	account, err := store.Retrieve("alice")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if account.Password != "kr" {
		t.Errorf("Expected password kr, got %q", account.Password)
	}

	if err := store.Delete("alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Retrieve("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := store.Delete("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected 0 accounts, got %d", len(accounts))
	}

	if err := store.Store(&Account{Username: "mockuser", Password: "pw"}); err != nil {
		t.Errorf("Failed to store account: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 account, got %d", store.Count())
	}
	if !store.Exists("mockuser") {
		t.Error("Account should exist")
	}

	store.ListError = fmt.Errorf("injected error")
	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestShowCredentialHelp(t *testing.T) {
	var buf bytes.Buffer
	ShowCredentialHelp(&buf, "alice")
	if !bytes.Contains(buf.Bytes(), []byte(EnvPassword)) {
		t.Error("help should name the password variable")
	}
}
