// Package keys stores the shared tokens that authenticate command requests.
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mithrel/agentipc/internal/config"
)

// TokenSize is the length of tokens produced by NewToken.
const TokenSize = 32

// TokenStore provides access to per-server token material.
type TokenStore interface {
	Get(server string) ([]byte, error)
	Put(server string, token []byte) error
	Delete(server string) error
}

var ErrKeyNotFound = errors.New("token not found")

// NewToken returns TokenSize random bytes.
func NewToken() ([]byte, error) {
	tok := make([]byte, TokenSize)
	if _, err := rand.Read(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Open returns the store selected by cfg.Auth, or nil when authentication
// is disabled.
func Open(cfg *config.Config) (TokenStore, error) {
	switch cfg.Auth {
	case config.AuthNone, "":
		return nil, nil
	case config.AuthConfig:
		return &ConfigStore{Tokens: map[string]string{cfg.ServerName: cfg.AuthToken}}, nil
	case config.AuthKeyring:
		return &KeyringStore{}, nil
	default:
		return nil, fmt.Errorf("%w: agent.auth %q", config.ErrInvalid, cfg.Auth)
	}
}

// ConfigStore keeps base64 tokens taken from agent.auth_token.
type ConfigStore struct {
	Tokens map[string]string
}

func (s *ConfigStore) Get(server string) ([]byte, error) {
	if s == nil || s.Tokens == nil {
		return nil, ErrKeyNotFound
	}
	val, ok := s.Tokens[server]
	if !ok || val == "" {
		return nil, fmt.Errorf("%w for %q", ErrKeyNotFound, server)
	}
	return base64.StdEncoding.DecodeString(val)
}

func (s *ConfigStore) Put(server string, token []byte) error {
	if s.Tokens == nil {
		s.Tokens = map[string]string{}
	}
	s.Tokens[server] = base64.StdEncoding.EncodeToString(token)
	return nil
}

func (s *ConfigStore) Delete(server string) error {
	if s == nil || s.Tokens == nil {
		return nil
	}
	delete(s.Tokens, server)
	return nil
}
