package events

import "github.com/bravecorp/pwo-login-server/internal/script"

// Module is one loaded unit of script-driven behavior: a name, a sandboxed
// environment in the scripting engine, and the set of events it has
// subscribed to. Registry and Module are deliberately the same package so
// Registry can reach into a Module's subscription maps directly, the Go
// equivalent of the original's `friend class Module`.
type Module struct {
	name       string
	path       string
	registry   *Registry
	sandboxEnv script.SandboxEnv

	eventCallbacks          map[string][]script.CallbackHandle
	identifiedEventCallbacks map[string]map[string]script.CallbackHandle
	identifiedOnceConnects  map[string][]string
	onceConnects            []script.CallbackHandle

	dependencies []string
}

func newModule(r *Registry, name, path string) *Module {
	return &Module{
		name:                     name,
		path:                     path,
		registry:                 r,
		sandboxEnv:               r.engine.NewSandboxEnv(),
		eventCallbacks:           make(map[string][]script.CallbackHandle),
		identifiedEventCallbacks: make(map[string]map[string]script.CallbackHandle),
		identifiedOnceConnects:   make(map[string][]string),
	}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// SandboxEnv returns the module's scripting-engine sandbox handle.
func (m *Module) SandboxEnv() script.SandboxEnv { return m.sandboxEnv }

// HasDependencies reports whether the module declared any.
func (m *Module) HasDependencies() bool { return len(m.dependencies) > 0 }

// Dependencies returns the module names this module depends on.
func (m *Module) Dependencies() []string { return m.dependencies }

// SetDependencies records the module names this module requires to already
// be loaded. Populated by whatever loads module manifests; this package
// does not parse them itself.
func (m *Module) SetDependencies(deps []string) { m.dependencies = deps }

// Connect subscribes callback to event. With no identifier the
// subscription is positional: every connected module fires on every
// emit. With an identifier the subscription is keyed: it only fires on an
// emit naming that exact identifier, and at most one callback may be
// registered per (event, identifier) pair per module.
func (m *Module) Connect(event string, callback script.CallbackHandle, identifier string) bool {
	if identifier == "" {
		m.eventCallbacks[event] = append(m.eventCallbacks[event], callback)
		m.registry.addModuleEvent(event, m)
		return true
	}

	eventMap := m.identifiedEventCallbacks[event]
	if eventMap == nil {
		eventMap = make(map[string]script.CallbackHandle)
		m.identifiedEventCallbacks[event] = eventMap
	}
	if _, exists := eventMap[identifier]; exists {
		return false
	}
	eventMap[identifier] = callback
	m.registry.addIdentifiedModuleEvent(event, m)
	return true
}

// ConnectOnce subscribes like Connect, but the subscription is removed
// automatically the first time it fires.
func (m *Module) ConnectOnce(event string, callback script.CallbackHandle, identifier string) bool {
	if !m.Connect(event, callback, identifier) {
		return false
	}
	if identifier == "" {
		m.onceConnects = append(m.onceConnects, callback)
	} else {
		m.identifiedOnceConnects[event] = append(m.identifiedOnceConnects[event], identifier)
	}
	return true
}

// Disconnect removes a positional subscription. clearList additionally
// prunes the registry's event entry once no module is registered for it
// any more.
func (m *Module) Disconnect(event string, callback script.CallbackHandle, clearList bool) {
	if callbacks, ok := m.eventCallbacks[event]; ok {
		callbacks = removeCallback(callbacks, callback)
		m.registry.engine.Unref(callback)
		if len(callbacks) == 0 {
			m.registry.removeModuleEvent(event, m)
			delete(m.eventCallbacks, event)
		} else {
			m.eventCallbacks[event] = callbacks
		}
	}

	if clearList {
		m.registry.pruneModuleEventIfEmpty(event)
	}
}

// DisconnectIdentified removes a keyed subscription.
func (m *Module) DisconnectIdentified(event, identifier string, clearList bool) {
	eventMap, ok := m.identifiedEventCallbacks[event]
	if !ok {
		return
	}
	if callback, ok := eventMap[identifier]; ok {
		m.registry.engine.Unref(callback)
		delete(eventMap, identifier)
		if len(eventMap) == 0 {
			m.registry.removeIdentifiedModuleEvent(event, m)
		}
	}

	if clearList {
		m.registry.pruneIdentifiedModuleEventIfEmpty(event)
	}
}

// FreeConnections tears down every subscription the module holds,
// releasing callback handles back to the scripting engine. Called when a
// module is unloaded.
func (m *Module) FreeConnections() {
	type positional struct {
		event    string
		callback script.CallbackHandle
	}
	var positionals []positional
	for event, callbacks := range m.eventCallbacks {
		for _, cb := range callbacks {
			positionals = append(positionals, positional{event, cb})
		}
	}
	for _, p := range positionals {
		m.Disconnect(p.event, p.callback, true)
	}

	type keyed struct{ event, identifier string }
	var keyedList []keyed
	for event, eventMap := range m.identifiedEventCallbacks {
		for identifier := range eventMap {
			keyedList = append(keyedList, keyed{event, identifier})
		}
	}
	for _, k := range keyedList {
		m.DisconnectIdentified(k.event, k.identifier, true)
	}
}

// GetEventCallback returns the positional callbacks registered for event,
// or nil if there are none.
func (m *Module) GetEventCallback(event string) []script.CallbackHandle {
	return m.eventCallbacks[event]
}

func (m *Module) identifiedCallback(event, identifier string) (script.CallbackHandle, bool) {
	eventMap, ok := m.identifiedEventCallbacks[event]
	if !ok {
		return 0, false
	}
	cb, ok := eventMap[identifier]
	return cb, ok
}

func removeCallback(callbacks []script.CallbackHandle, target script.CallbackHandle) []script.CallbackHandle {
	out := callbacks[:0]
	for _, cb := range callbacks {
		if cb != target {
			out = append(out, cb)
		}
	}
	return out
}
