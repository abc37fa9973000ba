package config

import (
	"runtime"
)

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
// This is the single source of truth for default values and generator output.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		// Transport selection and addressing
		{Key: "ipc.type", Default: string(DefaultKind(runtime.GOOS)), Comment: "Transport kind: unix-socket or windows-named-pipe"},
		{Key: "ipc.unixsocket.dir", Default: defaultSocketDir(), Comment: "Socket root directory; sockets live in <dir>/<user>/<server>"},
		{Key: "ipc.windows.pipe_template", Default: "agentipc-{user}-{server}", Comment: "Pipe name template under \\\\.\\pipe\\; must contain {server}"},

		{Key: "agent.server_name", Default: "command-channel", Comment: "Server name bound by the agent daemon"},
		{Key: "agent.http_addr", Default: "", Comment: "HTTP address for /healthz and /metrics; empty disables"},

		// Request authentication
		{Key: "agent.auth", Default: AuthNone, Comment: "Request authentication: none, config (agent.auth_token) or keyring"},
		{Key: "agent.auth_token", Default: "", Comment: "Base64 shared token used when agent.auth = config"},

		{Key: "log.level", Default: "info", Comment: "Log level: debug, info, warn, error"},
		{Key: "log.format", Default: "console", Comment: "Log format: console or json"},
	}
}
