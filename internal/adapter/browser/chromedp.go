// Package browser hosts the dApp in a Chrome tab driven over the DevTools
// protocol. It installs the provider before any page script runs, routes
// binding calls to the bridge and injects settle scripts back into the page.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"walletbridge/internal/domain"
)

// Config holds configuration for the chromedp page.
type Config struct {
	// RemoteURL is the CDP WebSocket endpoint for connecting to a remote Chrome.
	// If empty, a local Chrome instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched Chrome runs headless.
	Headless bool
	// Timeout is the per-action timeout.
	Timeout time.Duration
	// Binding is the global function the provider posts through.
	Binding string
}

// Page is a single Chrome tab hosting the dApp.
type Page struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	targetID      target.ID
	binding       string
	timeout       time.Duration
	logger        *slog.Logger
	connected     bool

	handler  domain.MessageHandler
	hmu      sync.Mutex
	closing  bool
	handlers sync.WaitGroup
	// handlerCtx outlives individual CDP actions; cancelled on Close.
	handlerCtx    context.Context
	handlerCancel context.CancelFunc

	gone     chan struct{} // closed when the tab goes away
	goneOnce sync.Once

	// Default execution contexts of the main frame that are still alive.
	// Binding calls and responses are only honoured for these.
	cmu  sync.Mutex
	live map[runtime.ExecutionContextID]bool
}

type execContextKey struct{}

// withExecutionContext tags ctx with the execution context a binding call
// came from, so the response goes back to the same document.
func withExecutionContext(ctx context.Context, id runtime.ExecutionContextID) context.Context {
	return context.WithValue(ctx, execContextKey{}, id)
}

func executionContextFrom(ctx context.Context) (runtime.ExecutionContextID, bool) {
	id, ok := ctx.Value(execContextKey{}).(runtime.ExecutionContextID)
	return id, ok
}

// contextAux is the auxData Chrome attaches to a page execution context.
type contextAux struct {
	FrameID   string `json:"frameId"`
	IsDefault bool   `json:"isDefault"`
}

// NewPage launches (or connects to) Chrome and opens one tab.
func NewPage(cfg Config, handler domain.MessageHandler, logger *slog.Logger) (*Page, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Binding == "" {
		return nil, domain.NewDomainError("browser.NewPage", domain.ErrInvalidInput, "binding name is required")
	}
	if handler == nil {
		return nil, domain.NewDomainError("browser.NewPage", domain.ErrInvalidInput, "message handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Page{
		binding: cfg.Binding,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "browser"),
		handler: handler,
		gone:    make(chan struct{}),
		live:    make(map[runtime.ExecutionContextID]bool),
	}
	p.handlerCtx, p.handlerCancel = context.WithCancel(context.Background())

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(
			context.Background(), cfg.RemoteURL,
		)
		p.logger.Info("chromedp connecting to remote browser", "url", cfg.RemoteURL)
	} else {
		// Copy default options to avoid mutating the package-level slice.
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 800),
		)
		allocCtx, p.allocCancel = chromedp.NewExecAllocator(
			context.Background(), opts...,
		)
		p.logger.Info("chromedp launching local browser", "headless", cfg.Headless)
	}

	p.browserCtx, p.browserCancel = chromedp.NewContext(allocCtx)
	p.tabCtx, p.tabCancel = chromedp.NewContext(p.browserCtx)

	// chromedp binds the CDP session to the context passed to the first Run,
	// so the tab context itself must not carry a timeout.
	startDone := make(chan error, 1)
	go func() { startDone <- chromedp.Run(p.tabCtx) }()
	select {
	case err := <-startDone:
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("start browser: %w: %w", domain.ErrBrowserNotConn, err)
		}
	case <-time.After(cfg.Timeout):
		p.Close()
		return nil, fmt.Errorf("start browser: %w: timed out after %v", domain.ErrBrowserNotConn, cfg.Timeout)
	}

	p.targetID = chromedp.FromContext(p.tabCtx).Target.TargetID
	chromedp.ListenTarget(p.tabCtx, p.onTargetEvent)
	chromedp.ListenBrowser(p.browserCtx, p.onBrowserEvent)
	p.connected = true

	p.logger.Info("chromedp browser started", "target", p.targetID)
	return p, nil
}

// Install exposes the binding and registers script to run at the start of
// every new document in the tab, ahead of the page's own scripts.
func (p *Page) Install(ctx context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := chromedp.Run(tctx,
		runtime.AddBinding(p.binding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
	); err != nil {
		return fmt.Errorf("install provider: %w: %w", domain.ErrInjectFailed, err)
	}
	p.logger.Debug("provider installed", "binding", p.binding, "bytes", len(script))
	return nil
}

// Navigate loads url in the tab and waits for the document body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return domain.WrapOp("navigate", err)
	}
	p.logger.Info("page loaded", "url", url)
	return nil
}

// Inject evaluates script in the document that sent the request carried by
// ctx, or in the current document when ctx carries none. A response for a
// document that has since gone away is dropped. Settle scripts report
// whether a pending call was found; a miss is logged, not an error.
func (p *Page) Inject(ctx context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return domain.ErrPageClosed
	}

	var opts []chromedp.EvaluateOption
	if id, ok := executionContextFrom(ctx); ok {
		if !p.contextLive(id) {
			p.logger.Debug("response dropped, document is gone", "context_id", id)
			return nil
		}
		opts = append(opts, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithContextID(id)
		})
	}

	tctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var settled bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(script, &settled, opts...)); err != nil {
		return domain.WrapOp("inject", err)
	}
	if !settled {
		p.logger.Debug("response found no pending call")
	}
	return nil
}

// Wait blocks until the tab is closed, the browser exits or ctx ends.
func (p *Page) Wait(ctx context.Context) error {
	select {
	case <-p.gone:
		return domain.ErrPageClosed
	case <-p.tabCtx.Done():
		return domain.ErrPageClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the tab and the browser and waits for in-flight handlers.
func (p *Page) Close() error {
	p.mu.Lock()
	p.connected = false
	if p.handlerCancel != nil {
		p.handlerCancel()
	}
	if p.tabCancel != nil {
		p.tabCancel()
	}
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.mu.Unlock()

	p.hmu.Lock()
	p.closing = true
	p.hmu.Unlock()
	p.handlers.Wait()
	p.markGone()
	p.logger.Info("chromedp browser closed")
	return nil
}

// withTimeout derives an action context from the tab that also ends with ctx.
// Caller must hold mu.
func (p *Page) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(p.tabCtx, p.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (p *Page) markGone() {
	p.goneOnce.Do(func() { close(p.gone) })
}

// onTargetEvent runs on chromedp's event goroutine and must not block.
func (p *Page) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != p.binding {
			return
		}
		if !p.contextLive(e.ExecutionContextID) {
			p.logger.Debug("binding call outside the main document ignored", "context_id", e.ExecutionContextID)
			return
		}
		payload := e.Payload
		ctx := withExecutionContext(p.handlerCtx, e.ExecutionContextID)
		p.hmu.Lock()
		if p.closing {
			p.hmu.Unlock()
			return
		}
		p.handlers.Add(1)
		p.hmu.Unlock()
		go func() {
			defer p.handlers.Done()
			p.handler(ctx, payload)
		}()
	case *runtime.EventExecutionContextCreated:
		p.contextCreated(e.Context)
	case *runtime.EventExecutionContextDestroyed:
		p.cmu.Lock()
		delete(p.live, e.ExecutionContextID)
		p.cmu.Unlock()
	case *runtime.EventExecutionContextsCleared:
		p.cmu.Lock()
		clear(p.live)
		p.cmu.Unlock()
	case *inspector.EventDetached:
		p.logger.Info("devtools detached", "reason", e.Reason)
		p.markGone()
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			p.logger.Debug("document navigated", "url", e.Frame.URL)
		}
	}
}

// contextCreated tracks the default context of main-frame documents. Child
// frames and isolated worlds are left out.
func (p *Page) contextCreated(desc *runtime.ExecutionContextDescription) {
	if desc == nil || len(desc.AuxData) == 0 {
		return
	}
	var aux contextAux
	if err := json.Unmarshal(desc.AuxData, &aux); err != nil {
		p.logger.Debug("unreadable execution context aux data", "error", err)
		return
	}
	if !aux.IsDefault || aux.FrameID != string(p.targetID) {
		return
	}
	p.cmu.Lock()
	p.live[desc.ID] = true
	p.cmu.Unlock()
}

func (p *Page) contextLive(id runtime.ExecutionContextID) bool {
	p.cmu.Lock()
	defer p.cmu.Unlock()
	return p.live[id]
}

func (p *Page) onBrowserEvent(ev interface{}) {
	if e, ok := ev.(*target.EventTargetDestroyed); ok && e.TargetID == p.targetID {
		p.logger.Info("tab closed")
		p.markGone()
	}
}
