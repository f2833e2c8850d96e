package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediacrawl/pkg/auth"
	"mediacrawl/pkg/config"
	"mediacrawl/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage forum credentials",
	Long: `Manage stored forum passwords so they can stay out of the config file.

Passwords are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (MEDIACRAWL_USERNAME / MEDIACRAWL_PASSWORD, read only)

A password written in the config file always takes precedence.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a forum password securely",
	Long: `Store a forum password in the system keychain or the encrypted file.

The username defaults to the one in the config file.`,
	Example: `  # Use the username from config.yaml
  mediacrawl auth login

  # Explicit username
  mediacrawl auth login alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove a stored password",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts and which password the crawl would use",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

// configuredUsername returns the username from the config file, if any
func configuredUsername() string {
	path, err := resolveConfigPath()
	if err != nil {
		return ""
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return ""
	}
	return cfg.Username
}

func usernameArg(args []string, reader *bufio.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	if username := configuredUsername(); username != "" {
		return username, nil
	}
	if reader == nil {
		return "", errors.New("username is required")
	}

	fmt.Fprint(os.Stderr, "Forum username: ")
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	username, err := usernameArg(args, reader)
	if err != nil {
		return err
	}
	if username == "" {
		return errors.New("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Fprintf(os.Stderr, "Account '%s' already has a password. Replace it? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	err = manager.Store(&auth.Account{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Password stored for " + username)
	fmt.Fprintln(ui.Output, "\nThe crawler uses it whenever the config file has no password.")
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	username, err := usernameArg(args, nil)
	if err != nil {
		return err
	}
	if err := manager.Delete(username); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + username)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'mediacrawl auth login' to add one")
	} else {
		ui.PrintHighlight("Stored Accounts")
		for i, account := range accounts {
			sanitized := auth.SanitizeAccount(account)
			fmt.Fprintf(ui.Output, "%d. %s  %s", i+1, sanitized.Username, ui.Dim(sanitized.Password))
			if !sanitized.LastModified.IsZero() {
				fmt.Fprintf(ui.Output, "  %s", ui.Dim(sanitized.LastModified.Format("2006-01-02 15:04")))
			}
			fmt.Fprintln(ui.Output)
		}
	}

	path, err := resolveConfigPath()
	if err != nil {
		return nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(ui.Output)
	switch {
	case cfg.Password != "":
		ui.PrintInfo(cfg.Username, "password from "+path)
	default:
		if _, err := manager.ResolvePassword(cfg); err != nil {
			ui.PrintWarning("No password available for " + cfg.Username)
			auth.ShowCredentialHelp(ui.Output, cfg.Username)
			return nil
		}
		ui.PrintInfo(cfg.Username, "password from credential store")
	}
	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
