package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmux/dispatchmux/core"
)

// orderTrackingMiddleware appends its name to a shared trace on every hook
// call, letting tests assert the exact call order.
type orderTrackingMiddleware struct {
	name  string
	trace *[]string
}

func (m orderTrackingMiddleware) HandleConsume(_ context.Context, _ core.Direction, msg any, _ string) (any, error) {
	*m.trace = append(*m.trace, "consume:"+m.name)
	return msg, nil
}

func (m orderTrackingMiddleware) HandlePublish(_ context.Context, _ core.Direction, msg any, _ string) (any, error) {
	*m.trace = append(*m.trace, "publish:"+m.name)
	return msg, nil
}

func TestMiddlewareStackOrdering(t *testing.T) {
	var trace []string
	stack := core.NewMiddlewareStack(
		orderTrackingMiddleware{name: "a", trace: &trace},
		orderTrackingMiddleware{name: "b", trace: &trace},
		orderTrackingMiddleware{name: "c", trace: &trace},
	)

	msg := core.NewUserMessage()
	_, err := stack.ApplyConsume(context.Background(), core.DirInbound, msg, "ep")
	require.NoError(t, err)

	_, err = stack.ApplyPublish(context.Background(), core.DirInbound, msg, "ep")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"consume:a", "consume:b", "consume:c",
		"publish:c", "publish:b", "publish:a",
	}, trace)
}

type dropMiddleware struct{ core.BaseMiddleware }

func (dropMiddleware) HandleConsume(_ context.Context, _ core.Direction, _ any, _ string) (any, error) {
	return nil, nil
}

func TestMiddlewareStackDropStopsChain(t *testing.T) {
	var trace []string
	stack := core.NewMiddlewareStack(
		orderTrackingMiddleware{name: "a", trace: &trace},
		dropMiddleware{},
		orderTrackingMiddleware{name: "c", trace: &trace},
	)

	msg := core.NewUserMessage()
	out, err := stack.ApplyConsume(context.Background(), core.DirInbound, msg, "ep")
	require.ErrorIs(t, err, core.ErrDropMessage)
	assert.Nil(t, out)
	assert.Equal(t, []string{"consume:a"}, trace)
}

type errMiddleware struct {
	core.BaseMiddleware
	err error
}

func (m errMiddleware) HandleConsume(_ context.Context, _ core.Direction, msg any, _ string) (any, error) {
	return msg, m.err
}

func TestMiddlewareStackPropagatesError(t *testing.T) {
	boom := assert.AnError
	stack := core.NewMiddlewareStack(errMiddleware{err: boom})

	_, err := stack.ApplyConsume(context.Background(), core.DirInbound, core.NewUserMessage(), "ep")
	require.ErrorIs(t, err, boom)
}

func TestEmptyMiddlewareStackPassesThrough(t *testing.T) {
	stack := core.NewMiddlewareStack()
	msg := core.NewUserMessage()

	out, err := stack.ApplyConsume(context.Background(), core.DirInbound, msg, "ep")
	require.NoError(t, err)
	assert.Same(t, msg, out)
}
