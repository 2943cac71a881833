package credentials

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultKeychainService is the generic-password service name used on macOS.
const DefaultKeychainService = "helix-auth-credentials"

// KeychainStore keeps credentials as a JSON generic password in the macOS keychain
type KeychainStore struct {
	service string
	account string
	mu      sync.Mutex
	logger  *zerolog.Logger
	// run executes the security CLI with stdin; replaced in tests.
	run func(stdin []byte, args ...string) ([]byte, error)
}

// NewKeychainStore creates a new keychain-based credentials store
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{
		service: service,
		account: "helix-auth",
		run:     runSecurity,
	}
}

// NewKeychainStoreWithLogger creates a new keychain-based credentials store with logger
func NewKeychainStoreWithLogger(service string, logger zerolog.Logger) *KeychainStore {
	k := NewKeychainStore(service)
	k.logger = &logger
	return k
}

// Load reads the credentials stored under the service name
func (k *KeychainStore) Load() (*Credentials, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.read()
}

// Save merges creds over the stored credentials and writes them back
func (k *KeychainStore) Save(creds *Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are nil")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	merged := *creds
	if current, err := k.read(); err == nil {
		merged = merged.Merge(current)
	} else if k.logger != nil {
		k.logger.Debug().Err(err).Msg("No existing keychain credentials, creating new entry")
	}

	updatedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal updated credentials: %w", err)
	}

	// Interactive mode reads the command from stdin, keeping the secret out of
	// argv. -U updates the item in place when it already exists.
	cmd := fmt.Sprintf("add-generic-password -U -s %q -a %q -X %s\n", k.service, k.account, hex.EncodeToString(updatedJSON))
	if _, err := k.run([]byte(cmd), "-i"); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}

	if k.logger != nil {
		k.logger.Debug().Str("service", k.service).Msg("🔑 Stored credentials in keychain")
	}
	return nil
}

func (k *KeychainStore) read() (*Credentials, error) {
	output, err := k.run(nil, "find-generic-password", "-s", k.service, "-w")
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve password from Keychain: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(bytes.TrimSpace(output), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from keychain: %w", err)
	}
	return &creds, nil
}

func runSecurity(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command("security", args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.Output()
}
