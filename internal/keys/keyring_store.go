package keys

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const DefaultKeyringService = "agentipc"

// KeyringStore keeps tokens in the system keyring, one entry per server name.
type KeyringStore struct {
	Service string
}

func (s *KeyringStore) Get(server string) ([]byte, error) {
	val, err := keyring.Get(s.service(), server)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w for %q in keyring", ErrKeyNotFound, server)
		}
		return nil, err
	}
	return base64.StdEncoding.DecodeString(val)
}

func (s *KeyringStore) Put(server string, token []byte) error {
	return keyring.Set(s.service(), server, base64.StdEncoding.EncodeToString(token))
}

func (s *KeyringStore) Delete(server string) error {
	err := keyring.Delete(s.service(), server)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (s *KeyringStore) service() string {
	if s != nil && s.Service != "" {
		return s.Service
	}
	return DefaultKeyringService
}

// KeyringAvailable reports whether a system keyring backend appears supported.
func KeyringAvailable() bool {
	_, err := keyring.Get(DefaultKeyringService, "_probe_")
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	return !errors.Is(err, keyring.ErrUnsupportedPlatform)
}
