// Package keyring keeps the remote ledger credentials in the OS keyring so
// they never live in the environment or in shell history.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored for the account
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Get returns the secret stored for account under the application service
func Get(account string) (string, error) {
	secret, err := keyring.Get(constants.AppName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

// Set stores secret for account
func Set(account, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%s secret cannot be empty", account)
	}
	if err := keyring.Set(constants.AppName, account, secret); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// Delete removes the secret stored for account
func Delete(account string) error {
	err := keyring.Delete(constants.AppName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// GetConnectionString returns the ledger connection string
func GetConnectionString() (string, error) {
	return Get(constants.DefaultKeyringUser)
}

// SetConnectionString stores the ledger connection string
func SetConnectionString(connStr string) error {
	return Set(constants.DefaultKeyringUser, connStr)
}

// DeleteConnectionString removes the ledger connection string
func DeleteConnectionString() error {
	return Delete(constants.DefaultKeyringUser)
}

// IsAvailable is a best-effort probe of the OS keyring
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
