// Package credentials stores the inference API key in ~/.conclave/credentials.yaml
// with AES-GCM encryption at rest.
//
// Encryption key storage uses the system keyring (macOS Keychain, Windows
// Credential Manager, Linux Secret Service). For CI and headless hosts, set
// CONCLAVE_ENCRYPTION_KEY to a 64-character hex string (32 bytes).
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultCredentialsDir is created under the user's home directory.
	DefaultCredentialsDir = ".conclave"
	// DefaultCredentialsFile holds the encrypted credentials.
	DefaultCredentialsFile = "credentials.yaml"

	// APIKeyEnvVar short-circuits the store when set.
	APIKeyEnvVar = "GEMINI_API_KEY"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no credentials are stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Credentials holds the stored inference credentials.
type Credentials struct {
	// APIKey is the inference API key (encrypted at rest).
	APIKey string `yaml:"api_key"`
	// LastUpdated is when the credentials were last written.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Store manages credential storage operations.
type Store struct {
	credentialsDir string
	encryptionKey  []byte
	keyProvider    KeyProvider
}

// NewStore creates a credential store using the default key provider.
func NewStore() (*Store, error) {
	keyProvider, err := GetDefaultKeyProvider()
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreWithKeyProvider(keyProvider)
}

// NewStoreWithKeyProvider creates a credential store with a custom key provider.
func NewStoreWithKeyProvider(keyProvider KeyProvider) (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		credentialsDir: dir,
		encryptionKey:  key,
		keyProvider:    keyProvider,
	}, nil
}

// CredentialsDir returns the credentials directory path.
// Uses $CONCLAVE_CONFIG_DIR if set, otherwise ~/.conclave
func CredentialsDir() (string, error) {
	if dir := os.Getenv("CONCLAVE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultCredentialsDir), nil
}

// Save stores credentials to the credentials file with the API key encrypted.
func (s *Store) Save(creds *Credentials) error {
	if err := os.MkdirAll(s.credentialsDir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	storageCreds := *creds
	storageCreds.LastUpdated = time.Now()

	if storageCreds.APIKey != "" {
		encrypted, err := s.encrypt(storageCreds.APIKey)
		if err != nil {
			return fmt.Errorf("encrypting API key: %w", err)
		}
		storageCreds.APIKey = encrypted
	}

	data, err := yaml.Marshal(&storageCreds)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)
	if err := os.WriteFile(credPath, data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	return nil
}

// Load reads and decrypts credentials from the credentials file.
func (s *Store) Load() (*Credentials, error) {
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)

	data, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.APIKey != "" {
		decrypted, err := s.decrypt(creds.APIKey)
		if err != nil {
			return nil, fmt.Errorf("decrypting API key: %w", err)
		}
		creds.APIKey = decrypted
	}

	return &creds, nil
}

// Delete removes stored credentials.
func (s *Store) Delete() error {
	credPath := filepath.Join(s.credentialsDir, DefaultCredentialsFile)

	if err := os.Remove(credPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("removing credentials file: %w", err)
	}

	return nil
}

// Exists checks if a credentials file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.credentialsDir, DefaultCredentialsFile))
	return err == nil
}

// ResolveAPIKey returns the inference API key. The GEMINI_API_KEY environment
// variable wins over the stored credentials file.
func (s *Store) ResolveAPIKey() (string, error) {
	if key := os.Getenv(APIKeyEnvVar); key != "" {
		return key, nil
	}

	creds, err := s.Load()
	if err != nil {
		return "", err
	}
	if creds.APIKey == "" {
		return "", ErrNoCredentials
	}
	return creds.APIKey, nil
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}

	return string(plaintext), nil
}

// MaskAPIKey returns a masked API key for display.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}
	return apiKey[:4] + strings.Repeat("*", 8) + "..." + apiKey[len(apiKey)-4:]
}
