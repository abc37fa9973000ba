package command

import (
	"context"
	"fmt"

	"github.com/mithrel/agentipc/internal/ipc/transport"
)

// Dialer opens channels to named servers; *ipc.Connector satisfies it.
type Dialer interface {
	ConnectToServer(ctx context.Context, serverName string) (*transport.Channel, error)
}

// Send performs one request/response exchange on ch.
func Send(ch *transport.Channel, req Request) (Response, error) {
	b, err := req.Marshal()
	if err != nil {
		return Response{}, err
	}
	if err := ch.WriteMessage(b); err != nil {
		return Response{}, fmt.Errorf("send %q: %w", req.Receiver, err)
	}
	out, err := ch.ReadMessage()
	if err != nil {
		return Response{}, fmt.Errorf("await %q response: %w", req.Receiver, err)
	}
	return UnmarshalResponse(out)
}

// Call connects to serverName, sends req and closes the channel.
func Call(ctx context.Context, d Dialer, serverName string, req Request) (Response, error) {
	ch, err := d.ConnectToServer(ctx, serverName)
	if err != nil {
		return Response{}, err
	}
	defer ch.Close()
	return Send(ch, req)
}
