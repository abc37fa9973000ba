package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// TransportKind tags a transport implementation.
type TransportKind string

const (
	UnixSocket       TransportKind = "unix-socket"
	WindowsNamedPipe TransportKind = "windows-named-pipe"
)

// KnownKinds lists the transport kinds a configuration may name.
var KnownKinds = []TransportKind{UnixSocket, WindowsNamedPipe}

// ParseTransportKind maps a configured tag to a TransportKind.
func ParseTransportKind(s string) (TransportKind, error) {
	k := TransportKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownTransport, s)
}

// DefaultKind returns the transport kind native to goos.
func DefaultKind(goos string) TransportKind {
	if goos == "windows" {
		return WindowsNamedPipe
	}
	return UnixSocket
}

const (
	// sun_path is 104 bytes on BSD/macOS and 108 on Linux; use the smaller.
	maxSocketPath = 104
	maxServerName = 64

	pipePrefix = `\\.\pipe\`
)

// Endpoint describes which transport to use and how to address it.
type Endpoint struct {
	Kind         TransportKind
	SocketDir    string
	PipeTemplate string
}

// Address is a resolved platform address for one server name.
type Address struct {
	Kind   TransportKind
	Server string
	// Dir is the per-user socket directory; empty for named pipes.
	Dir  string
	Path string
}

func (a Address) String() string { return a.Path }

// ResolveAddress derives the platform address for serverName, qualified by
// the user identity so that two local users never share an endpoint.
func (e Endpoint) ResolveAddress(serverName string, id Identity) (Address, error) {
	if err := ValidateServerName(serverName); err != nil {
		return Address{}, err
	}
	owner := id.PathComponent()
	switch e.Kind {
	case UnixSocket:
		if e.SocketDir == "" {
			return Address{}, invalid(fmt.Errorf("ipc.unixsocket.dir is required"))
		}
		dir := filepath.Join(e.SocketDir, owner)
		path := filepath.Join(dir, serverName)
		if len(path) > maxSocketPath {
			return Address{}, invalid(fmt.Errorf("socket path %s exceeds %d bytes", path, maxSocketPath))
		}
		return Address{Kind: e.Kind, Server: serverName, Dir: dir, Path: path}, nil
	case WindowsNamedPipe:
		if !strings.Contains(e.PipeTemplate, "{server}") {
			return Address{}, invalid(fmt.Errorf("ipc.windows.pipe_template must contain {server}"))
		}
		name := strings.NewReplacer("{server}", serverName, "{user}", owner).Replace(e.PipeTemplate)
		name = strings.TrimPrefix(name, pipePrefix)
		return Address{Kind: e.Kind, Server: serverName, Path: pipePrefix + name}, nil
	default:
		return Address{}, invalid(fmt.Errorf("%w %q", ErrUnknownTransport, e.Kind))
	}
}

// ValidateServerName checks that name is a short identifier usable as a
// file or pipe name component.
func ValidateServerName(name string) error {
	if name == "" || len(name) > maxServerName || name == "." || name == ".." {
		return invalid(fmt.Errorf("%w %q", ErrInvalidServerName, name))
	}
	for i, r := range name {
		if isNameRune(r) && (i > 0 || r != '.' && r != '-' && r != '_') {
			continue
		}
		return invalid(fmt.Errorf("%w %q", ErrInvalidServerName, name))
	}
	return nil
}

func isNameRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-'
}

// Identity is the OS user an endpoint belongs to.
type Identity struct {
	Name string
	UID  string
}

// CurrentIdentity resolves the effective user. It falls back to $USER or
// $USERNAME and finally the numeric uid when no user database entry exists.
func CurrentIdentity() Identity {
	id := Identity{UID: strconv.Itoa(os.Geteuid())}
	if u, err := user.Current(); err == nil {
		id.Name = u.Username
		id.UID = u.Uid
	}
	if id.Name == "" {
		id.Name = os.Getenv("USER")
	}
	if id.Name == "" {
		id.Name = os.Getenv("USERNAME")
	}
	return id
}

// PathComponent returns the identity as a safe single path element.
func (id Identity) PathComponent() string {
	name := id.Name
	// DOMAIN\user on Windows
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = id.UID
	}
	if out == "" {
		out = "unknown"
	}
	return out
}
