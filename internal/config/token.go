package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const apiTokenAccount = "api_token"

// SecretStore reads and writes secrets in the platform secret store.
type SecretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformSecrets struct{}

// NewKeychain returns the platform secret store.
func NewKeychain() SecretStore {
	return platformSecrets{}
}

func (platformSecrets) Get(service, account string) (string, error) {
	return keychainReader{}.Get(service, account)
}

func (platformSecrets) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token guarding management endpoints,
// generating and storing one on first use.
func GetAPIToken(s SecretStore) (string, error) {
	if tok, err := s.Get(keychainService, apiTokenAccount); err == nil && strings.TrimSpace(tok) != "" {
		return strings.TrimSpace(tok), nil
	}
	tok := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := s.Set(keychainService, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
