package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Drivers understood by the prepare path.
const (
	DriverPostgres = "postgres"
	DriverESQLC    = "esqlc"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Prepare     Prepare      `mapstructure:"prepare" yaml:"prepare"`
	Journal     Journal      `mapstructure:"journal" yaml:"journal"`
	Log         Log          `mapstructure:"log" yaml:"log"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
}

// Connection represents a saved database connection profile.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// Prepare configures the background prepare path.
type Prepare struct {
	Workers int    `mapstructure:"workers" yaml:"workers"`
	Driver  string `mapstructure:"driver" yaml:"driver"`
	// Library is the path of the ESQL/C shim, used by the esqlc driver.
	Library string `mapstructure:"library" yaml:"library,omitempty"`
}

// Journal configures the prepare history database.
type Journal struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
}

// DSN builds the connection string the profile's driver expects: a
// PostgreSQL URL, or database@server for ESQL/C.
func (c Connection) DSN() string {
	if c.Driver == DriverESQLC {
		if c.Host == "" {
			return c.Database
		}
		return c.Database + "@" + c.Host
	}

	u := url.URL{
		Scheme: "postgresql",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port > 0 {
		u.Host += ":" + strconv.Itoa(c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	if c.Driver == DriverESQLC {
		return c.DSN()
	}
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection string into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Database: trimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, _ = strconv.Atoi(portStr)
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	// Auto-generate a name
	conn.Name = fmt.Sprintf("postgres-%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

// ParseESQLCDSN parses database@server into a Connection.
func ParseESQLCDSN(dsn string) (Connection, error) {
	db, server, _ := strings.Cut(strings.TrimSpace(dsn), "@")
	if db == "" {
		return Connection{}, fmt.Errorf("invalid DSN: missing database name")
	}
	conn := Connection{
		Driver:   DriverESQLC,
		Host:     server,
		Database: db,
	}
	conn.Name = "esqlc-" + db
	if server != "" {
		conn.Name += "-" + server
	}
	return conn, nil
}

// ParseTarget parses dsn according to driver.
func ParseTarget(driver, dsn string) (Connection, error) {
	if driver == DriverESQLC {
		return ParseESQLCDSN(dsn)
	}
	return ParseDSN(dsn)
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	return cfg.FindConnection(name) != nil
}

// FindConnection returns the profile called name, or nil.
func (cfg *Config) FindConnection(name string) *Connection {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i]
		}
	}
	return nil
}

// AddConnection appends a connection if it doesn't already exist.
func (cfg *Config) AddConnection(conn Connection) {
	if !cfg.HasConnection(conn.Name) {
		cfg.Connections = append(cfg.Connections, conn)
	}
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
