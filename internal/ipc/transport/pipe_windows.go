//go:build windows

package transport

import (
	"context"
	"errors"
	"io/fs"
	"net"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

const pipeSupported = true

func dialPipe(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

func listenPipe(path string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		// Default security: creator and Administrators only.
		SecurityDescriptor: "",
		MessageMode:        false,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}
	return winio.ListenPipe(path, cfg)
}

func pipeReason(err error) ConnectReason {
	if errors.Is(err, fs.ErrNotExist) {
		return ReasonEndpointMissing
	}
	return ReasonRefused
}

func isPipeInUse(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PIPE_BUSY)
}

func isListenerClosed(err error) bool {
	return errors.Is(err, winio.ErrPipeListenerClosed)
}
