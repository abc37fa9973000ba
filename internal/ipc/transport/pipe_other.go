//go:build !windows

package transport

import (
	"context"
	"net"
)

const pipeSupported = false

func dialPipe(context.Context, string) (net.Conn, error) { return nil, ErrUnsupported }

func listenPipe(string) (net.Listener, error) { return nil, ErrUnsupported }

func pipeReason(error) ConnectReason { return ReasonRefused }

func isPipeInUse(error) bool { return false }

func isListenerClosed(error) bool { return false }
