package command

import (
	"context"
	"os"
	"strconv"
	"time"
)

// Ping reports that the agent is alive.
func Ping(serverName string, started time.Time) Receiver {
	return ReceiverFunc(func(context.Context, Request) Response {
		return Response{Type: OK, Params: map[string]string{
			"pid":    strconv.Itoa(os.Getpid()),
			"server": serverName,
			"uptime": time.Since(started).Round(time.Millisecond).String(),
		}}
	})
}

// Echo answers with the request parameters unchanged.
func Echo() Receiver {
	return ReceiverFunc(func(_ context.Context, req Request) Response {
		params := make(map[string]string, len(req.Params))
		for k, v := range req.Params {
			params[k] = v
		}
		return Response{Type: OK, Params: params}
	})
}

// RegisterBuiltins registers ping and echo on d.
func RegisterBuiltins(d *Dispatcher, serverName string, started time.Time) error {
	if err := d.Register("ping", Ping(serverName, started)); err != nil {
		return err
	}
	return d.Register("echo", Echo())
}
