package pagesim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletbridge/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mu   sync.Mutex
	msgs []string
}

func (c *collector) handle(_ context.Context, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, raw)
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func newPage(t *testing.T, handler domain.MessageHandler) *Page {
	t.Helper()
	p, err := New(Options{Binding: "hostPost"}, handler, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{}, func(context.Context, string) {}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Options{Binding: "x"}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWindowAliases(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})
	ctx := context.Background()

	v, err := p.Eval(ctx, `window === self && window.window === window`)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = p.Eval(ctx, `window.top === window && window.parent === window`)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestRunawayRecursionIsBounded(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})

	err := p.Inject(context.Background(), `function f() { return f(); } f();`)
	require.Error(t, err)

	v, err := p.Eval(context.Background(), `1 + 1`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestBindingReachesHandler(t *testing.T) {
	c := &collector{}
	p := newPage(t, c.handle)

	require.NoError(t, p.Inject(context.Background(), `hostPost("hello"); window.hostPost("again");`))
	require.Eventually(t, func() bool { return len(c.messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"hello", "again"}, c.messages())
}

func TestLoadRunsScriptsThenFiresLoad(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})
	ctx := context.Background()

	require.NoError(t, p.Load(ctx,
		`var order = []; addEventListener('load', function () { order.push('load'); });`,
		`order.push('script');`,
	))
	v, err := p.Eval(ctx, `order.join(',')`)
	require.NoError(t, err)
	assert.Equal(t, "script,load", v)
}

func TestListenerErrorIsCaptured(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})
	ctx := context.Background()

	require.NoError(t, p.Inject(ctx, `
		addEventListener('load', function () { throw new Error('boom'); });
		addEventListener('load', function () { console.log('second', 2); });
	`))
	require.NoError(t, p.DispatchEvent(ctx, "load"))

	entries := p.Console()
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[0].Level)
	assert.Contains(t, entries[0].Message, "boom")
	assert.Equal(t, "log", entries[1].Level)
	assert.Equal(t, "second 2", entries[1].Message)
}

func TestTimers(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})
	ctx := context.Background()

	require.NoError(t, p.Inject(ctx, `
		var fired = [];
		setTimeout(function () { fired.push('a'); }, 5);
		var h = setTimeout(function () { fired.push('b'); }, 5);
		clearTimeout(h);
		setTimeout(function () { fired.push('c'); }, 10);
	`))

	require.Eventually(t, func() bool {
		v, err := p.Eval(ctx, `fired.join(',')`)
		return err == nil && v == "a,c"
	}, time.Second, 5*time.Millisecond)
}

func TestPromiseJobsSettleWithinEval(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})
	ctx := context.Background()

	require.NoError(t, p.Inject(ctx, `var got; Promise.resolve(41).then(function (v) { got = v + 1; });`))
	v, err := p.Eval(ctx, `got`)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestScriptErrorsAreReturned(t *testing.T) {
	p := newPage(t, func(context.Context, string) {})

	err := p.Inject(context.Background(), `throw new Error('nope')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	// The page survives.
	v, err := p.Eval(context.Background(), `1 + 1`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestClosedPageRejectsWork(t *testing.T) {
	p, err := New(Options{Binding: "hostPost"}, func(context.Context, string) {}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Inject(context.Background(), `1`)
	assert.True(t, errors.Is(err, domain.ErrPageClosed))
}

func TestCloseCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	var sawCancel bool
	p, err := New(Options{Binding: "hostPost"}, func(ctx context.Context, _ string) {
		close(started)
		<-ctx.Done()
		sawCancel = true
	}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, p.Inject(context.Background(), `hostPost("x")`))
	<-started
	require.NoError(t, p.Close())
	assert.True(t, sawCancel)
}
