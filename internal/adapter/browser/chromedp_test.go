package browser

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainFrame = "MAINFRAME"

// newEventPage builds a Page with no browser behind it, enough to drive
// onTargetEvent and the context checks in Inject.
func newEventPage(handler func(ctx context.Context, raw string)) *Page {
	p := &Page{
		binding:   "hostPost",
		logger:    quiet(),
		handler:   handler,
		targetID:  mainFrame,
		connected: true,
		gone:      make(chan struct{}),
		live:      make(map[runtime.ExecutionContextID]bool),
	}
	p.handlerCtx, p.handlerCancel = context.WithCancel(context.Background())
	return p
}

func contextCreated(id int64, frame string, isDefault bool) *runtime.EventExecutionContextCreated {
	aux := fmt.Sprintf(`{"isDefault":%t,"type":"default","frameId":%q}`, isDefault, frame)
	return &runtime.EventExecutionContextCreated{Context: &runtime.ExecutionContextDescription{
		ID:      runtime.ExecutionContextID(id),
		AuxData: []byte(aux),
	}}
}

func bindingCall(id int64, payload string) *runtime.EventBindingCalled {
	return &runtime.EventBindingCalled{
		Name:               "hostPost",
		Payload:            payload,
		ExecutionContextID: runtime.ExecutionContextID(id),
	}
}

func TestBindingCallsOnlyFromMainDocument(t *testing.T) {
	var mu sync.Mutex
	got := map[string]runtime.ExecutionContextID{}
	p := newEventPage(func(ctx context.Context, raw string) {
		id, _ := executionContextFrom(ctx)
		mu.Lock()
		got[raw] = id
		mu.Unlock()
	})

	p.onTargetEvent(contextCreated(1, mainFrame, true))
	p.onTargetEvent(contextCreated(2, "CHILDFRAME", true))
	p.onTargetEvent(contextCreated(3, mainFrame, false)) // isolated world

	p.onTargetEvent(bindingCall(1, "main"))
	p.onTargetEvent(bindingCall(2, "child"))
	p.onTargetEvent(bindingCall(3, "isolated"))
	p.onTargetEvent(bindingCall(9, "unknown"))
	p.handlers.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]runtime.ExecutionContextID{"main": 1}, got)
}

func TestContextTrackingFollowsLifecycle(t *testing.T) {
	p := newEventPage(func(context.Context, string) {})

	p.onTargetEvent(contextCreated(1, mainFrame, true))
	p.onTargetEvent(contextCreated(2, mainFrame, true))
	assert.True(t, p.contextLive(1))

	p.onTargetEvent(&runtime.EventExecutionContextDestroyed{ExecutionContextID: 1})
	assert.False(t, p.contextLive(1))
	assert.True(t, p.contextLive(2))

	p.onTargetEvent(&runtime.EventExecutionContextsCleared{})
	assert.False(t, p.contextLive(2))
}

func TestContextTrackingIgnoresBadAuxData(t *testing.T) {
	p := newEventPage(func(context.Context, string) {})
	p.onTargetEvent(&runtime.EventExecutionContextCreated{Context: &runtime.ExecutionContextDescription{
		ID: 4, AuxData: []byte(`not json`),
	}})
	p.onTargetEvent(&runtime.EventExecutionContextCreated{Context: &runtime.ExecutionContextDescription{ID: 5}})
	assert.False(t, p.contextLive(4))
	assert.False(t, p.contextLive(5))
}

func TestInjectDropsResponseForGoneDocument(t *testing.T) {
	p := newEventPage(func(context.Context, string) {})
	p.onTargetEvent(contextCreated(1, mainFrame, true))
	p.onTargetEvent(&runtime.EventExecutionContextDestroyed{ExecutionContextID: 1})

	// No browser is attached; reaching chromedp would fail.
	err := p.Inject(withExecutionContext(context.Background(), 1), `true`)
	require.NoError(t, err)
}

func TestExecutionContextRoundTrip(t *testing.T) {
	_, ok := executionContextFrom(context.Background())
	assert.False(t, ok)

	id, ok := executionContextFrom(withExecutionContext(context.Background(), 42))
	assert.True(t, ok)
	assert.Equal(t, runtime.ExecutionContextID(42), id)
}
