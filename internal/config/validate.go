package config

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
	authModes  = []string{AuthNone, AuthConfig, AuthKeyring}
)

// CheckConfigValidity reports every problem in v, not just the first.
func CheckConfigValidity(v *viper.Viper) error {
	var errs error

	kind, err := ParseTransportKind(v.GetString("ipc.type"))
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	switch kind {
	case UnixSocket:
		dir := expandHome(strings.TrimSpace(v.GetString("ipc.unixsocket.dir")))
		if dir == "" {
			errs = multierr.Append(errs, fmt.Errorf("ipc.unixsocket.dir is required"))
		} else if !filepath.IsAbs(dir) {
			errs = multierr.Append(errs, fmt.Errorf("ipc.unixsocket.dir must be an absolute path"))
		}
	case WindowsNamedPipe:
		tmpl := strings.TrimSpace(v.GetString("ipc.windows.pipe_template"))
		if !strings.Contains(tmpl, "{server}") {
			errs = multierr.Append(errs, fmt.Errorf("ipc.windows.pipe_template must contain {server}"))
		}
	}

	if err := ValidateServerName(strings.TrimSpace(v.GetString("agent.server_name"))); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("agent.server_name: %w", ErrInvalidServerName))
	}
	switch mode := authMode(v); {
	case !oneOf(mode, authModes):
		errs = multierr.Append(errs, fmt.Errorf("agent.auth must be one of %s", strings.Join(authModes, ", ")))
	case mode == AuthConfig:
		tok := strings.TrimSpace(v.GetString("agent.auth_token"))
		if b, err := base64.StdEncoding.DecodeString(tok); err != nil || len(b) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("agent.auth_token must be non-empty base64 when agent.auth = config"))
		}
	}
	if !oneOf(v.GetString("log.level"), logLevels) {
		errs = multierr.Append(errs, fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !oneOf(v.GetString("log.format"), logFormats) {
		errs = multierr.Append(errs, fmt.Errorf("log.format must be one of %s", strings.Join(logFormats, ", ")))
	}
	return errs
}

func authMode(v *viper.Viper) string {
	mode := strings.ToLower(strings.TrimSpace(v.GetString("agent.auth")))
	if mode == "" {
		return AuthNone
	}
	return mode
}

func oneOf(s string, allowed []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
