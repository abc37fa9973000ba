package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalid matches every configuration failure: missing or malformed
	// file, unknown transport kind, failed validation.
	ErrInvalid = errors.New("invalid ipc configuration")

	ErrNotFound          = errors.New("config file not found")
	ErrUnknownTransport  = errors.New("unknown transport kind")
	ErrInvalidServerName = errors.New("invalid server name")
)

// Request authentication modes.
const (
	AuthNone    = "none"
	AuthConfig  = "config"
	AuthKeyring = "keyring"
)

// Config is the loaded agent configuration. It is not mutated after Load.
type Config struct {
	Endpoint   Endpoint
	ServerName string
	HTTPAddr   string
	Auth       string
	AuthToken  string
	LogLevel   string
	LogFormat  string

	path string
}

// Path returns the file the configuration was read from.
func (c *Config) Path() string { return c.path }

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load reads the properties file at path with precedence
// defaults < file < env (AGENTIPC_*). A missing file is an error.
func Load(path string) (*Config, error) {
	return LoadViper(viper.New(), path)
}

// LoadViper is Load on a caller-provided Viper instance, which is mutated
// with defaults, file contents, and env bindings.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, invalid(fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return nil, invalid(err)
	}
	if fi.IsDir() {
		return nil, invalid(fmt.Errorf("%s is a directory", path))
	}

	applyDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, invalid(fmt.Errorf("read %s: %w", path, err))
	}

	// Environment variables: AGENTIPC_IPC_TYPE, AGENTIPC_AGENT_SERVER_NAME, ...
	v.SetEnvPrefix("agentipc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := CheckConfigValidity(v); err != nil {
		return nil, invalid(err)
	}
	return fromViper(v, path), nil
}

func fromViper(v *viper.Viper, path string) *Config {
	// validated by CheckConfigValidity
	kind, _ := ParseTransportKind(v.GetString("ipc.type"))
	return &Config{
		Endpoint: Endpoint{
			Kind:         kind,
			SocketDir:    expandHome(strings.TrimSpace(v.GetString("ipc.unixsocket.dir"))),
			PipeTemplate: strings.TrimSpace(v.GetString("ipc.windows.pipe_template")),
		},
		ServerName: strings.TrimSpace(v.GetString("agent.server_name")),
		HTTPAddr:   strings.TrimSpace(v.GetString("agent.http_addr")),
		Auth:       authMode(v),
		AuthToken:  strings.TrimSpace(v.GetString("agent.auth_token")),
		LogLevel:   strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		LogFormat:  strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		path:       path,
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

// DefaultConfigPath resolves the standard ipc.properties location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "agentipc", "ipc.properties")
}

func defaultSocketDir() string {
	return filepath.Join(os.TempDir(), "agentipc")
}

// expandHome expands a leading ~ for convenience.
func expandHome(dir string) string {
	if len(dir) > 0 && dir[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}
