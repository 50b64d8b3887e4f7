package remotetool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

func TestPoolUnknownServer(t *testing.T) {
	p := NewPool([]ServerConfig{{Name: "known", Command: "true"}}, nil)
	t.Cleanup(func() { _ = p.Close() })

	_, _, err := p.Call(context.Background(), "unknown", "anything", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestPoolBadCommandFails(t *testing.T) {
	p := NewPool([]ServerConfig{{Name: "broken", Command: "/nonexistent/mcp-server"}}, nil)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Call(ctx, "broken", "anything", nil)
	require.Error(t, err)
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(nil, nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
