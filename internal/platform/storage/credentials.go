package storage

import (
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ServiceAccount holds the identity used to sign poster upload URLs.
type ServiceAccount struct {
	Email      string
	PrivateKey []byte
	// SignBytes replaces local signing with PrivateKey when set, e.g. IAM signBlob.
	SignBytes func([]byte) ([]byte, error)
}

// ParseServiceAccount reads client_email and private_key out of a JSON key file.
func ParseServiceAccount(raw []byte) (ServiceAccount, error) {
	var key struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return ServiceAccount{}, fmt.Errorf("storage: decode service account: %w", err)
	}
	email := strings.TrimSpace(key.ClientEmail)
	if email == "" {
		return ServiceAccount{}, errors.New("storage: service account client_email is empty")
	}
	pemKey := []byte(strings.TrimSpace(key.PrivateKey))
	if block, _ := pem.Decode(pemKey); block == nil {
		return ServiceAccount{}, errors.New("storage: service account private_key is not PEM")
	}
	return ServiceAccount{Email: email, PrivateKey: pemKey}, nil
}

func (a ServiceAccount) validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return errors.New("storage: signer email is required")
	}
	if len(a.PrivateKey) == 0 && a.SignBytes == nil {
		return errors.New("storage: signer needs a private key or a SignBytes func")
	}
	return nil
}
