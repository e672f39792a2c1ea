// Package script defines the boundary between the event system and the
// scripting runtime that actually owns module code. The original server
// embeds a Lua state and calls back into it by registry reference; this
// package captures that same shape as a Go interface so internal/events
// can invoke module callbacks without depending on any particular
// scripting engine. No concrete engine ships in this repository — see
// internal/script/fakeengine for the implementation tests exercise it
// with.
package script

// CallbackHandle is an opaque reference to a registered callback, the Go
// analogue of a luaL_ref into LUA_REGISTRYINDEX. The zero value never
// refers to a real callback.
type CallbackHandle int32

// SandboxEnv is an opaque reference to a module's sandboxed global
// environment, the Go analogue of the sandbox table index
// Module::m_sandboxEnv carries.
type SandboxEnv int

// ModuleManifest is the parsed content of a module's settings.lua: the
// names of the modules it depends on (loadDependencies) and the script
// files it loads, in order, with const.lua (if present) already placed
// first (loadFiles).
type ModuleManifest struct {
	Dependencies []string
	Files        []string
}

// Engine is the calling surface a scripting runtime must expose for
// internal/events to drive module callbacks and load module code. A
// callback invocation panicking is handled by internal/events itself
// (the bridge recovers and logs so one misbehaving script can't bring
// down the dispatcher goroutine) — Engine implementations don't need to
// guard against that themselves.
type Engine interface {
	// NewSandboxEnv allocates a fresh sandboxed global environment for a
	// module being loaded, mirroring LuaInterface::newSandboxEnv.
	NewSandboxEnv() SandboxEnv

	// CallNoRet invokes cb within env's sandbox, discarding any return
	// value, mirroring LuaInterface::callSandboxLuaFieldNoRet.
	CallNoRet(cb CallbackHandle, env SandboxEnv, args ...any)

	// CallCollect invokes cb within env's sandbox and returns every value
	// the callback returned, mirroring
	// LuaInterface::callSandboxLuaField/callSandboxLuaFieldRef — the
	// latter is just the former called with a single table-ref argument,
	// so internal/events builds both emit variants on this one method.
	CallCollect(cb CallbackHandle, env SandboxEnv, args ...any) []any

	// Unref releases a callback or table handle, mirroring luaL_unref.
	Unref(cb CallbackHandle)

	// LoadManifest reads and parses path's settings.lua, mirroring
	// Module::load's settings.lua load plus loadDependencies.
	LoadManifest(path string) (ModuleManifest, error)

	// LoadFile loads a single script file into env's sandbox and, if it
	// defines an init function, calls it, mirroring Module::loadFiles'
	// per-file load-then-call-init step.
	LoadFile(env SandboxEnv, path string) error
}
