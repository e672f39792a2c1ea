// Package fakeengine implements script.Engine in memory, recording calls
// instead of driving a real scripting runtime. It lets internal/events and
// internal/protocol be exercised by tests without a Lua (or any other)
// interpreter in this repository, and cmd/login-server uses it as a
// placeholder engine.
package fakeengine

import (
	"fmt"
	"sync"

	"github.com/bravecorp/pwo-login-server/internal/script"
)

// Call is one recorded invocation of a registered callback.
type Call struct {
	Callback script.CallbackHandle
	Env      script.SandboxEnv
	Args     []any
}

// Engine records every CallNoRet/CallCollect it receives and optionally
// runs a registered Go func in place of a real script callback, so tests
// can assert on both "did this fire" and "what did it do". Module loading
// is backed by manifests registered in advance with RegisterManifest,
// standing in for settings.lua since no interpreter parses real script
// files here; LoadFile succeeds for any path not registered with
// RegisterFileError.
type Engine struct {
	mu          sync.Mutex
	nextEnv     script.SandboxEnv
	nextCB      script.CallbackHandle
	calls       []Call
	unrefed     map[script.CallbackHandle]bool
	callbacks   map[script.CallbackHandle]func(env script.SandboxEnv, args ...any)
	collectFns  map[script.CallbackHandle]func(env script.SandboxEnv, args ...any) []any
	manifests   map[string]script.ModuleManifest
	fileErrors  map[string]error
	loadedFiles []string
}

// New returns a ready-to-use Engine.
func New() *Engine {
	return &Engine{
		unrefed:    make(map[script.CallbackHandle]bool),
		callbacks:  make(map[script.CallbackHandle]func(env script.SandboxEnv, args ...any)),
		collectFns: make(map[script.CallbackHandle]func(env script.SandboxEnv, args ...any) []any),
		manifests:  make(map[string]script.ModuleManifest),
		fileErrors: make(map[string]error),
	}
}

func (e *Engine) NewSandboxEnv() script.SandboxEnv {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextEnv++
	return e.nextEnv
}

// Register hands back a fresh handle tests can pass to
// internal/events.Module.Connect, wired to run fn when invoked.
func (e *Engine) Register(fn func(env script.SandboxEnv, args ...any)) script.CallbackHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCB++
	cb := e.nextCB
	e.callbacks[cb] = fn
	return cb
}

func (e *Engine) CallNoRet(cb script.CallbackHandle, env script.SandboxEnv, args ...any) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Callback: cb, Env: env, Args: args})
	fn := e.callbacks[cb]
	e.mu.Unlock()

	if fn != nil {
		fn(env, args...)
	}
}

// RegisterCollect hands back a fresh handle tests can pass to
// internal/events.Module.Connect, wired to run fn (and return its result)
// when invoked through CallCollect.
func (e *Engine) RegisterCollect(fn func(env script.SandboxEnv, args ...any) []any) script.CallbackHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCB++
	cb := e.nextCB
	e.collectFns[cb] = fn
	return cb
}

func (e *Engine) CallCollect(cb script.CallbackHandle, env script.SandboxEnv, args ...any) []any {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Callback: cb, Env: env, Args: args})
	fn := e.collectFns[cb]
	e.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(env, args...)
}

func (e *Engine) Unref(cb script.CallbackHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unrefed[cb] = true
	delete(e.callbacks, cb)
	delete(e.collectFns, cb)
}

// RegisterManifest makes LoadManifest(path) return manifest, standing in
// for a parsed settings.lua.
func (e *Engine) RegisterManifest(path string, manifest script.ModuleManifest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manifests[path] = manifest
}

// RegisterFileError makes LoadFile(_, path) return err instead of
// succeeding, standing in for a file that fails to parse or whose init
// panics.
func (e *Engine) RegisterFileError(path string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fileErrors[path] = err
}

func (e *Engine) LoadManifest(path string) (script.ModuleManifest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	manifest, ok := e.manifests[path]
	if !ok {
		return script.ModuleManifest{}, fmt.Errorf("fakeengine: no manifest registered for %q", path)
	}
	return manifest, nil
}

func (e *Engine) LoadFile(env script.SandboxEnv, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.fileErrors[path]; ok {
		return err
	}
	e.loadedFiles = append(e.loadedFiles, path)
	return nil
}

// LoadedFiles returns every path passed to LoadFile so far, in order.
func (e *Engine) LoadedFiles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loadedFiles...)
}

// Calls returns every recorded invocation so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Unreffed reports whether cb has been released.
func (e *Engine) Unreffed(cb script.CallbackHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unrefed[cb]
}
