// Package pagesim runs the injected provider inside an embedded JavaScript
// runtime that mimics the parts of a browser page the provider touches:
// window, load events, timers, console and the host binding.
//
// The runtime is not goroutine safe, so every touch of the VM happens on a
// single loop goroutine. Binding calls leave the loop before reaching the
// host handler, which is free to call back into the page.
package pagesim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"walletbridge/internal/domain"
)

// ConsoleEntry is one captured console call.
type ConsoleEntry struct {
	Level   string
	Message string
	Time    time.Time
}

// Options configures a Page.
type Options struct {
	// Binding is the global function name the provider posts through.
	Binding string
}

// maxCallStackSize bounds recursion in page scripts so a runaway script
// fails with a RangeError instead of growing without limit.
const maxCallStackSize = 4096

// Page is one simulated browsing context.
type Page struct {
	vm      *goja.Runtime
	logger  *slog.Logger
	handler domain.MessageHandler

	jobs     chan func()
	closing  chan struct{}
	loopDone chan struct{}
	once     sync.Once

	// handlers tracks binding calls in flight.
	handlers sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	// Loop-owned state.
	listeners map[string][]goja.Callable
	timers    map[int64]*time.Timer
	nextTimer int64

	consoleMu sync.Mutex
	console   []ConsoleEntry
}

// New creates a Page and starts its event loop. handler receives every
// message the page posts through the binding.
func New(opts Options, handler domain.MessageHandler, logger *slog.Logger) (*Page, error) {
	if opts.Binding == "" {
		return nil, domain.NewDomainError("pagesim.New", domain.ErrInvalidInput, "binding name is required")
	}
	if handler == nil {
		return nil, domain.NewDomainError("pagesim.New", domain.ErrInvalidInput, "message handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		vm:        goja.New(),
		logger:    logger.With("component", "pagesim"),
		handler:   handler,
		jobs:      make(chan func()),
		closing:   make(chan struct{}),
		loopDone:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[string][]goja.Callable),
		timers:    make(map[int64]*time.Timer),
	}
	p.vm.SetMaxCallStackSize(maxCallStackSize)
	if err := p.setupGlobals(opts.Binding); err != nil {
		cancel()
		return nil, err
	}

	go p.loop()
	return p, nil
}

func (p *Page) loop() {
	defer close(p.loopDone)
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.closing:
			for _, t := range p.timers {
				t.Stop()
			}
			p.timers = nil
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (p *Page) do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	errc := make(chan error, 1)
	job := func() { errc <- fn(p.vm) }

	select {
	case p.jobs <- job:
	case <-p.closing:
		return domain.ErrPageClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. Dropped once the page is closing.
func (p *Page) post(fn func()) {
	select {
	case p.jobs <- fn:
	case <-p.closing:
	}
}

// Inject evaluates script in the page. Script errors are reported to the
// caller; the page itself keeps running.
func (p *Page) Inject(ctx context.Context, script string) error {
	return p.do(ctx, func(vm *goja.Runtime) error {
		if _, err := vm.RunString(script); err != nil {
			return fmt.Errorf("pagesim inject: %w", err)
		}
		return nil
	})
}

// Eval evaluates expr and returns its exported value. Pending promise jobs
// settle before the value is read.
func (p *Page) Eval(ctx context.Context, expr string) (any, error) {
	var out any
	err := p.do(ctx, func(vm *goja.Runtime) error {
		v, err := vm.RunString(expr)
		if err != nil {
			return fmt.Errorf("pagesim eval: %w", err)
		}
		if v != nil {
			out = v.Export()
		}
		return nil
	})
	return out, err
}

// DispatchEvent calls every window listener registered for name.
func (p *Page) DispatchEvent(ctx context.Context, name string) error {
	return p.do(ctx, func(*goja.Runtime) error {
		p.fire(name)
		return nil
	})
}

// Load runs the given page scripts in order and then fires the load event,
// the way a document finishes loading after scripts injected at document
// start.
func (p *Page) Load(ctx context.Context, scripts ...string) error {
	for i, s := range scripts {
		if err := p.Inject(ctx, s); err != nil {
			return fmt.Errorf("page script %d: %w", i, err)
		}
	}
	return p.DispatchEvent(ctx, "load")
}

// Console returns a copy of the captured console output.
func (p *Page) Console() []ConsoleEntry {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()
	return append([]ConsoleEntry(nil), p.console...)
}

// Close stops the loop, cancels in-flight handlers and waits for them.
func (p *Page) Close() error {
	p.once.Do(func() {
		close(p.closing)
		<-p.loopDone
		p.cancel()
		p.handlers.Wait()
		p.logger.Debug("page closed")
	})
	return nil
}

func (p *Page) fire(name string) {
	for _, cb := range append([]goja.Callable(nil), p.listeners[name]...) {
		if _, err := cb(goja.Undefined()); err != nil {
			p.record("error", fmt.Sprintf("uncaught in %s listener: %v", name, err))
		}
	}
}

func (p *Page) record(level, msg string) {
	p.consoleMu.Lock()
	p.console = append(p.console, ConsoleEntry{Level: level, Message: msg, Time: time.Now()})
	p.consoleMu.Unlock()
	p.logger.Debug("page console", "level", level, "message", msg)
}

// setupGlobals installs the browser surface. Runs before the loop starts.
func (p *Page) setupGlobals(binding string) error {
	vm := p.vm
	global := vm.GlobalObject()

	// A top-level document: top and parent are the window itself.
	for _, name := range []string{"window", "self", "top", "parent"} {
		if err := global.Set(name, global); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, p.consoleFunc(level)); err != nil {
			return fmt.Errorf("set console.%s: %w", level, err)
		}
	}

	fns := map[string]func(goja.FunctionCall) goja.Value{
		"addEventListener":    p.addEventListener,
		"removeEventListener": p.removeEventListener,
		"setTimeout":          p.setTimeout,
		"clearTimeout":        p.clearTimeout,
		binding:               p.postToHost,
	}
	if err := global.Set("console", console); err != nil {
		return fmt.Errorf("set console: %w", err)
	}
	for name, fn := range fns {
		if err := global.Set(name, fn); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func (p *Page) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		p.record(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (p *Page) addEventListener(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	cb, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		return goja.Undefined()
	}
	p.listeners[name] = append(p.listeners[name], cb)
	return goja.Undefined()
}

// removeEventListener drops every listener for the event. Callables
// wrapping the same JS function are not comparable from Go.
func (p *Page) removeEventListener(call goja.FunctionCall) goja.Value {
	delete(p.listeners, call.Argument(0).String())
	return goja.Undefined()
}

func (p *Page) setTimeout(call goja.FunctionCall) goja.Value {
	cb, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(p.vm.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	p.nextTimer++
	id := p.nextTimer
	p.timers[id] = time.AfterFunc(delay, func() {
		p.post(func() {
			if _, live := p.timers[id]; !live {
				return
			}
			delete(p.timers, id)
			if _, err := cb(goja.Undefined()); err != nil {
				p.record("error", fmt.Sprintf("uncaught in timer: %v", err))
			}
		})
	})
	return p.vm.ToValue(id)
}

func (p *Page) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
	return goja.Undefined()
}

// postToHost is the binding function. The handler runs off the loop so it
// can inject responses back into the page.
func (p *Page) postToHost(call goja.FunctionCall) goja.Value {
	msg := call.Argument(0).String()
	p.handlers.Add(1)
	go func() {
		defer p.handlers.Done()
		p.handler(p.ctx, msg)
	}()
	return goja.Undefined()
}
