// Package events implements the module subscription and emission system
// that bridges dispatcher tasks to script callbacks: modules connect to
// named events, positionally or keyed by an identifier, and the registry
// fans an emitted event out to every subscriber in one synchronous pass.
package events

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/script"
)

// Registry tracks every loaded module and, for each event name, which
// modules are subscribed to it — split into a positional index and a
// keyed (identified) index, mirroring ModuleManager's m_moduleEvents and
// m_identifiedModuleEvents. All mutation is expected to happen on the
// single dispatcher goroutine; the mutex exists only to protect module
// load/unload happening concurrently with emission during startup.
type Registry struct {
	mu     sync.Mutex
	engine script.Engine
	log    logging.Logger

	modules                 map[string]*Module
	moduleEvents            map[string][]*Module
	identifiedModuleEvents  map[string][]*Module
}

// NewRegistry returns an empty Registry driven by engine, logging nowhere
// until SetLogger is called.
func NewRegistry(engine script.Engine) *Registry {
	return &Registry{
		engine:                 engine,
		log:                    logging.Nop(),
		modules:                make(map[string]*Module),
		moduleEvents:           make(map[string][]*Module),
		identifiedModuleEvents: make(map[string][]*Module),
	}
}

// SetLogger points the registry at a real logger. Used by the bridge's
// panic recovery to report which module/event a misbehaving callback came
// from.
func (r *Registry) SetLogger(log logging.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = log
}

// NewModule creates a new, empty module named name and returns it without
// registering it. The caller is responsible for connecting its event
// subscriptions and, once ready, registering it with Add.
func (r *Registry) NewModule(name, path string) *Module {
	return newModule(r, name, path)
}

// Add registers a loaded module by name, returning an error if a module
// of that name is already loaded.
func (r *Registry) Add(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.name]; exists {
		return fmt.Errorf("events: module %q already loaded", m.name)
	}
	r.modules[m.name] = m
	return nil
}

// Remove unloads a module: it frees every connection the module holds and
// drops it from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	m, ok := r.modules[name]
	if ok {
		delete(r.modules, name)
	}
	r.mu.Unlock()

	if ok {
		m.FreeConnections()
	}
}

// IsModuleLoaded reports whether a module of that name is registered.
func (r *Registry) IsModuleLoaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.modules[name]
	return ok
}

// GetModuleByName returns the module registered under name, or nil.
func (r *Registry) GetModuleByName(name string) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name]
}

func (r *Registry) addModuleEvent(event string, m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.moduleEvents[event] {
		if existing == m {
			return
		}
	}
	r.moduleEvents[event] = append(r.moduleEvents[event], m)
}

func (r *Registry) addIdentifiedModuleEvent(event string, m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.identifiedModuleEvents[event] {
		if existing == m {
			return
		}
	}
	r.identifiedModuleEvents[event] = append(r.identifiedModuleEvents[event], m)
}

func (r *Registry) removeModuleEvent(event string, m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moduleEvents[event] = removeModule(r.moduleEvents[event], m)
}

func (r *Registry) removeIdentifiedModuleEvent(event string, m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identifiedModuleEvents[event] = removeModule(r.identifiedModuleEvents[event], m)
}

func (r *Registry) pruneModuleEventIfEmpty(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.moduleEvents[event]) == 0 {
		delete(r.moduleEvents, event)
	}
}

func (r *Registry) pruneIdentifiedModuleEventIfEmpty(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.identifiedModuleEvents[event]) == 0 {
		delete(r.identifiedModuleEvents, event)
	}
}

func removeModule(modules []*Module, target *Module) []*Module {
	out := modules[:0]
	for _, m := range modules {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) snapshotModuleEvents(event string) []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Module(nil), r.moduleEvents[event]...)
}

func (r *Registry) snapshotIdentifiedModuleEvents(event string) []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Module(nil), r.identifiedModuleEvents[event]...)
}

// EmitNoRet fires event for every subscriber, discarding any script
// return value. With identifier == "" every positionally connected
// module's callbacks for event run, in subscription order. With a
// non-empty identifier only the keyed callback registered under that
// identifier runs per subscribed module.
//
// The keyed path carries forward the original's consecutive-duplicate
// skip: a module only fires if its registered callback differs from the
// previous module's dispatched callback in this same emit. That guard's
// intent is unclear from the source alone, but its behavior — including
// the edge case where two modules share a numerically identical callback
// handle and the second is skipped — is preserved rather than "fixed".
func (r *Registry) EmitNoRet(event, identifier string, args ...any) {
	if identifier == "" {
		for _, m := range r.snapshotModuleEvents(event) {
			for _, cb := range append([]script.CallbackHandle(nil), m.GetEventCallback(event)...) {
				r.invokeNoRet(m, event, cb, args...)
				r.checkConnectOnce(m, event, cb)
			}
		}
		return
	}

	var lastCallback script.CallbackHandle
	for _, m := range r.snapshotIdentifiedModuleEvents(event) {
		cb, ok := m.identifiedCallback(event, identifier)
		if ok && cb != lastCallback {
			lastCallback = cb
			r.invokeNoRet(m, event, cb, args...)
			r.checkConnectOnceIdentified(m, event, identifier)
		}
	}
}

// EmitCollect fires event for every subscriber and gathers every value
// each callback returns, in subscription order, mirroring
// ModuleManager::emit.
func (r *Registry) EmitCollect(event, identifier string, args ...any) []any {
	var results []any

	if identifier == "" {
		for _, m := range r.snapshotModuleEvents(event) {
			for _, cb := range append([]script.CallbackHandle(nil), m.GetEventCallback(event)...) {
				results = append(results, r.invokeCollect(m, event, cb, args...)...)
				r.checkConnectOnce(m, event, cb)
			}
		}
		return results
	}

	var lastCallback script.CallbackHandle
	for _, m := range r.snapshotIdentifiedModuleEvents(event) {
		cb, ok := m.identifiedCallback(event, identifier)
		if ok && cb != lastCallback {
			lastCallback = cb
			results = append(results, r.invokeCollect(m, event, cb, args...)...)
			r.checkConnectOnceIdentified(m, event, identifier)
		}
	}
	return results
}

// EmitByTableRef fires event, passing tableRef as the callback's sole
// argument, and returns the smallest first return value (as an int) of any
// subscriber, starting from 0 — mirroring ModuleManager::luaEmit, where any
// handler returning a negative value vetoes/lowers the result for the rest
// of the emit. Values after a callback's first return value are ignored.
// tableRef is released (Unref) once every subscriber has run, matching
// luaEmit's unconditional luaL_unref of it on return.
func (r *Registry) EmitByTableRef(event string, tableRef script.CallbackHandle, identifier string) int {
	ret := 0
	apply := func(m *Module, cb script.CallbackHandle) {
		results := r.invokeCollect(m, event, cb, tableRef)
		if len(results) == 0 {
			return
		}
		if n, ok := results[0].(int); ok && n < ret {
			ret = n
		}
	}

	if identifier == "" {
		for _, m := range r.snapshotModuleEvents(event) {
			for _, cb := range append([]script.CallbackHandle(nil), m.GetEventCallback(event)...) {
				apply(m, cb)
				r.checkConnectOnce(m, event, cb)
			}
		}
	} else {
		var lastCallback script.CallbackHandle
		for _, m := range r.snapshotIdentifiedModuleEvents(event) {
			cb, ok := m.identifiedCallback(event, identifier)
			if ok && cb != lastCallback {
				lastCallback = cb
				apply(m, cb)
				r.checkConnectOnceIdentified(m, event, identifier)
			}
		}
	}

	r.engine.Unref(tableRef)
	return ret
}

// invokeNoRet and invokeCollect are the scripting bridge: every call into
// a module's callback passes through one of these two, so a single place
// recovers a panicking handler, logs it with a stack trace, and lets
// emission continue with the next subscriber — mirroring the intent of
// LuaScript::reportError's catch-and-continue around Lua callback errors,
// applied here at the Go call boundary instead of inside the (absent)
// interpreter.
func (r *Registry) invokeNoRet(m *Module, event string, cb script.CallbackHandle, args ...any) {
	defer r.recoverCallback(m, event, cb)
	r.engine.CallNoRet(cb, m.SandboxEnv(), args...)
}

func (r *Registry) invokeCollect(m *Module, event string, cb script.CallbackHandle, args ...any) (results []any) {
	defer r.recoverCallback(m, event, cb)
	return r.engine.CallCollect(cb, m.SandboxEnv(), args...)
}

func (r *Registry) recoverCallback(m *Module, event string, cb script.CallbackHandle) {
	if rec := recover(); rec != nil {
		r.log.Log(logging.LevelError, "module callback panicked",
			"module", m.Name(), "event", event, "callback", cb,
			"err", rec, "stack", string(debug.Stack()))
	}
}

// RemoveAllConnectionsByID disconnects every module's keyed subscription
// for identifier, across every event. Used when a session identified by
// identifier (e.g. a connection) goes away.
func (r *Registry) RemoveAllConnectionsByID(identifier string) {
	for _, event := range r.eventsWithIdentifiedSubscribers() {
		for _, m := range r.snapshotIdentifiedModuleEvents(event) {
			m.DisconnectIdentified(event, identifier, false)
		}
		r.pruneIdentifiedModuleEventIfEmpty(event)
	}
}

func (r *Registry) eventsWithIdentifiedSubscribers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]string, 0, len(r.identifiedModuleEvents))
	for event := range r.identifiedModuleEvents {
		events = append(events, event)
	}
	return events
}

func (r *Registry) checkConnectOnce(m *Module, event string, callback script.CallbackHandle) {
	for i, cb := range m.onceConnects {
		if cb == callback {
			m.onceConnects = append(m.onceConnects[:i], m.onceConnects[i+1:]...)
			m.Disconnect(event, callback, true)
			return
		}
	}
}

// LoadModule loads the module rooted at path under name, mirroring
// Module::load: parse settings.lua through the engine, refuse to proceed
// if a declared dependency isn't already loaded, load const.lua and then
// every other file from the manifest into the module's sandbox, register
// the module, and emit onLoadModule — in that order, same as the
// original.
func (r *Registry) LoadModule(name, path string) (*Module, error) {
	manifest, err := r.engine.LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("events: load manifest for module %q: %w", name, err)
	}

	m := r.NewModule(name, path)
	m.SetDependencies(manifest.Dependencies)

	if m.HasDependencies() {
		for _, dep := range m.Dependencies() {
			if !r.IsModuleLoaded(dep) {
				return nil, fmt.Errorf("events: module %q dependency %q is not loaded", name, dep)
			}
		}
	}

	for _, file := range manifest.Files {
		if err := r.engine.LoadFile(m.SandboxEnv(), file); err != nil {
			return nil, fmt.Errorf("events: load file %q for module %q: %w", file, name, err)
		}
	}

	if err := r.Add(m); err != nil {
		return nil, err
	}

	r.EmitNoRet("onLoadModule", "", name)
	return m, nil
}

// LoadModules loads every module directory directly under modulesPath, in
// the order os.ReadDir returns them (lexical by name), mirroring
// ModuleManager::loadModules — minus the modules.lua ordering list, since
// no scripting engine ships here to parse one; every subdirectory of
// modulesPath is a candidate module. A module that fails to load (missing
// manifest, unmet dependency, bad file) is logged and skipped rather than
// aborting the rest of the scan, matching loadModules' per-entry
// continue-on-error loop.
func (r *Registry) LoadModules(modulesPath string) error {
	entries, err := os.ReadDir(modulesPath)
	if err != nil {
		return fmt.Errorf("events: read modules dir %q: %w", modulesPath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := r.LoadModule(name, filepath.Join(modulesPath, name)); err != nil {
			r.log.Log(logging.LevelError, "failed to load module", "module", name, "err", err)
		}
	}
	return nil
}

func (r *Registry) checkConnectOnceIdentified(m *Module, event, identifier string) {
	identifiers, ok := m.identifiedOnceConnects[event]
	if !ok {
		return
	}
	for i, id := range identifiers {
		if id == identifier {
			m.identifiedOnceConnects[event] = append(identifiers[:i], identifiers[i+1:]...)
			m.DisconnectIdentified(event, identifier, true)
			return
		}
	}
}
