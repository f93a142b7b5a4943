package session

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/matheus3301/crewchat/internal/config"
	"github.com/matheus3301/crewchat/internal/identity"
)

const DefaultSessionName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match %s", name, nameRegexp.String())
	}
	return nil
}

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. config.toml default_session
// 3. "main"
// The result is validated.
func Resolve(flagOverride string) (string, error) {
	name := flagOverride
	if name == "" {
		if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
			name = cfg.DefaultSession
		}
	}
	if name == "" {
		name = DefaultSessionName
	}
	return name, ValidateName(name)
}

// EnsureSecret returns the session's token signing secret, creating it on
// first use.
func EnsureSecret(name string) (string, error) {
	path := SecretPath(name)
	data, err := os.ReadFile(path)
	if err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := EnsureDir(name); err != nil {
		return "", err
	}
	secret, err := identity.GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0600); err != nil {
		return "", err
	}
	return secret, nil
}

// ReadSecret returns the session's token signing secret without creating it.
func ReadSecret(name string) (string, error) {
	data, err := os.ReadFile(SecretPath(name))
	if err != nil {
		return "", fmt.Errorf("read session secret (is crewd running for session %q?): %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
