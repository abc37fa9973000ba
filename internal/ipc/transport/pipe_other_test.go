//go:build !windows

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/agentipc/internal/config"
)

func TestNamedPipeUnsupported(t *testing.T) {
	p := NewNamedPipeProvider(WithPipeIdentity(alice))
	ep := config.Endpoint{Kind: config.WindowsNamedPipe, PipeTemplate: "agentipc-{user}-{server}"}

	_, err := p.NewClient(ep)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = p.NewServer(ep)
	require.ErrorIs(t, err, ErrUnsupported)
}
