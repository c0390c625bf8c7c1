package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name passwords are stored under.
const keyringService = "asyncprep"

// ResolvePassword fills in c.Password from the OS keyring when the profile
// carries none. A missing keyring entry is not an error.
func ResolvePassword(c *Connection) error {
	if c.Password != "" || c.Username == "" {
		return nil
	}
	secret, err := keyring.Get(keyringService, keyringUser(c))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("keyring lookup for %s: %w", c.Name, err)
	}
	c.Password = secret
	return nil
}

// StorePasswords moves inline passwords into the OS keyring so they are
// not written to the config file.
func StorePasswords(cfg *Config) error {
	for i := range cfg.Connections {
		c := &cfg.Connections[i]
		if c.Password == "" {
			continue
		}
		if err := keyring.Set(keyringService, keyringUser(c), c.Password); err != nil {
			return fmt.Errorf("keyring store for %s: %w", c.Name, err)
		}
		c.Password = ""
	}
	return nil
}

// ForgetPassword removes the stored password of c.
func ForgetPassword(c Connection) error {
	err := keyring.Delete(keyringService, keyringUser(&c))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete for %s: %w", c.Name, err)
	}
	return nil
}

func keyringUser(c *Connection) string {
	return c.Name + "/" + c.Username
}
