package events

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/script"
	"github.com/bravecorp/pwo-login-server/internal/script/fakeengine"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Level() logging.Level { return logging.LevelDebug }

func (l *recordingLogger) Log(level logging.Level, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) hasMessage(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestPositionalConnectAndEmit(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)

	m := reg.NewModule("greeter", "/modules/greeter")
	if err := reg.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var fired int
	cb := engine.Register(func(env script.SandboxEnv, args ...any) { fired++ })
	if !m.Connect("onLoadModule", cb, "") {
		t.Fatalf("Connect() = false")
	}

	reg.EmitNoRet("onLoadModule", "", "greeter")
	reg.EmitNoRet("onLoadModule", "", "greeter")

	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
}

func TestConnectOnceAutoDisconnects(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	m := reg.NewModule("once", "/modules/once")
	_ = reg.Add(m)

	var fired int
	cb := engine.Register(func(env script.SandboxEnv, args ...any) { fired++ })
	if !m.ConnectOnce("onPing", cb, "") {
		t.Fatalf("ConnectOnce() = false")
	}

	reg.EmitNoRet("onPing", "")
	reg.EmitNoRet("onPing", "")

	if fired != 1 {
		t.Fatalf("fired = %d, want 1 (ConnectOnce should auto-disconnect)", fired)
	}
	if !engine.Unreffed(cb) {
		t.Fatalf("callback handle was not released after firing once")
	}
	if len(m.GetEventCallback("onPing")) != 0 {
		t.Fatalf("event callback list should be empty after the once-callback fired")
	}
}

func TestKeyedConnectRejectsDuplicateIdentifier(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	m := reg.NewModule("sessions", "/modules/sessions")
	_ = reg.Add(m)

	cb1 := engine.Register(func(script.SandboxEnv, ...any) {})
	cb2 := engine.Register(func(script.SandboxEnv, ...any) {})

	if !m.Connect("onRedisMessage", cb1, "account-1") {
		t.Fatalf("first Connect() = false")
	}
	if m.Connect("onRedisMessage", cb2, "account-1") {
		t.Fatalf("second Connect() with same identifier should be rejected")
	}
}

func TestKeyedEmitOnlyFiresRegisteredIdentifier(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	m := reg.NewModule("sessions", "/modules/sessions")
	_ = reg.Add(m)

	var fired []string
	cb := engine.Register(func(env script.SandboxEnv, args ...any) {
		fired = append(fired, args[0].(string))
	})
	m.Connect("onRedisMessage", cb, "account-1")

	reg.EmitNoRet("onRedisMessage", "account-1", "payload-a")
	reg.EmitNoRet("onRedisMessage", "account-2", "payload-b")

	if len(fired) != 1 || fired[0] != "payload-a" {
		t.Fatalf("fired = %v, want exactly one call with payload-a", fired)
	}
}

func TestFreeConnectionsReleasesEverything(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	m := reg.NewModule("transient", "/modules/transient")
	_ = reg.Add(m)

	cbA := engine.Register(func(script.SandboxEnv, ...any) {})
	cbB := engine.Register(func(script.SandboxEnv, ...any) {})
	m.Connect("onLoadModule", cbA, "")
	m.Connect("onRedisMessage", cbB, "account-1")

	m.FreeConnections()

	if !engine.Unreffed(cbA) || !engine.Unreffed(cbB) {
		t.Fatalf("FreeConnections did not release all callback handles")
	}
	if len(reg.snapshotModuleEvents("onLoadModule")) != 0 {
		t.Fatalf("registry still lists module for onLoadModule after FreeConnections")
	}
	if len(reg.snapshotIdentifiedModuleEvents("onRedisMessage")) != 0 {
		t.Fatalf("registry still lists module for onRedisMessage after FreeConnections")
	}
}

func TestRemoveAllConnectionsByID(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	m := reg.NewModule("sessions", "/modules/sessions")
	_ = reg.Add(m)

	cb := engine.Register(func(script.SandboxEnv, ...any) {})
	m.Connect("onRedisMessage", cb, "account-1")

	reg.RemoveAllConnectionsByID("account-1")

	reg.EmitNoRet("onRedisMessage", "account-1", "payload")
	if calls := engine.Calls(); len(calls) != 0 {
		t.Fatalf("expected no calls after RemoveAllConnectionsByID, got %d", len(calls))
	}
}

func TestEmitCollectGathersEveryReturn(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	a := reg.NewModule("a", "/modules/a")
	b := reg.NewModule("b", "/modules/b")
	_ = reg.Add(a)
	_ = reg.Add(b)

	cbA := engine.RegisterCollect(func(env script.SandboxEnv, args ...any) []any { return []any{1, "x"} })
	cbB := engine.RegisterCollect(func(env script.SandboxEnv, args ...any) []any { return []any{2} })
	a.Connect("onCheck", cbA, "")
	b.Connect("onCheck", cbB, "")

	results := reg.EmitCollect("onCheck", "")
	if len(results) != 3 {
		t.Fatalf("EmitCollect() = %v, want 3 collected values", results)
	}
}

func TestEmitByTableRefTakesTheMinimumReturnedValue(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	a := reg.NewModule("a", "/modules/a")
	b := reg.NewModule("b", "/modules/b")
	_ = reg.Add(a)
	_ = reg.Add(b)

	cbA := engine.RegisterCollect(func(env script.SandboxEnv, args ...any) []any { return []any{5} })
	cbB := engine.RegisterCollect(func(env script.SandboxEnv, args ...any) []any { return []any{-3} })
	a.Connect("onVeto", cbA, "")
	b.Connect("onVeto", cbB, "")

	tableRef := engine.Register(func(script.SandboxEnv, ...any) {}) // any handle works as a table ref
	got := reg.EmitByTableRef("onVeto", tableRef, "")
	if got != -3 {
		t.Fatalf("EmitByTableRef() = %d, want -3 (the lowest returned value)", got)
	}
	if !engine.Unreffed(tableRef) {
		t.Fatalf("EmitByTableRef did not release the table ref")
	}
}

func TestEmitNoRetRecoversFromPanickingCallback(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)
	log := &recordingLogger{}
	reg.SetLogger(log)

	m := reg.NewModule("flaky", "/modules/flaky")
	_ = reg.Add(m)

	var secondRan bool
	cbPanic := engine.Register(func(script.SandboxEnv, ...any) { panic("boom") })
	cbOK := engine.Register(func(script.SandboxEnv, ...any) { secondRan = true })
	m.Connect("onTick", cbPanic, "")
	m.Connect("onTick", cbOK, "")

	reg.EmitNoRet("onTick", "")

	if !secondRan {
		t.Fatalf("a panicking callback should not prevent the next subscriber from running")
	}
	if !log.hasMessage("module callback panicked") {
		t.Fatalf("expected the panic to be logged, got %v", log.messages)
	}
}

func TestLoadModuleRejectsUnmetDependency(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)

	engine.RegisterManifest("/modules/b", script.ModuleManifest{Dependencies: []string{"a"}})

	if _, err := reg.LoadModule("b", "/modules/b"); err == nil {
		t.Fatalf("LoadModule() with an unmet dependency should have failed")
	}
	if reg.IsModuleLoaded("b") {
		t.Fatalf("module should not be registered after a failed dependency check")
	}
}

func TestLoadModuleSucceedsAndEmitsOnLoadModule(t *testing.T) {
	engine := fakeengine.New()
	reg := NewRegistry(engine)

	engine.RegisterManifest("/modules/a", script.ModuleManifest{Files: []string{"/modules/a/const.lua", "/modules/a/init.lua"}})
	if _, err := reg.LoadModule("a", "/modules/a"); err != nil {
		t.Fatalf("LoadModule(a): %v", err)
	}
	if !reg.IsModuleLoaded("a") {
		t.Fatalf("module a should be registered after a successful load")
	}

	engine.RegisterManifest("/modules/b", script.ModuleManifest{Dependencies: []string{"a"}, Files: []string{"/modules/b/init.lua"}})

	var loadedWith string
	onLoad := engine.Register(func(env script.SandboxEnv, args ...any) {
		if len(args) == 1 {
			loadedWith, _ = args[0].(string)
		}
	})
	helper := reg.NewModule("observer", "/modules/observer")
	_ = reg.Add(helper)
	helper.Connect("onLoadModule", onLoad, "")

	if _, err := reg.LoadModule("b", "/modules/b"); err != nil {
		t.Fatalf("LoadModule(b): %v", err)
	}
	if loadedWith != "b" {
		t.Fatalf("onLoadModule fired with %q, want \"b\"", loadedWith)
	}
	if files := engine.LoadedFiles(); len(files) != 3 {
		t.Fatalf("LoadedFiles() = %v, want 3 files loaded across both modules", files)
	}
}

func TestLoadModulesScansDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	engine := fakeengine.New()
	reg := NewRegistry(engine)
	engine.RegisterManifest(filepath.Join(dir, "a"), script.ModuleManifest{})
	engine.RegisterManifest(filepath.Join(dir, "b"), script.ModuleManifest{})

	if err := reg.LoadModules(dir); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	if !reg.IsModuleLoaded("a") || !reg.IsModuleLoaded("b") {
		t.Fatalf("expected both module directories to be loaded")
	}
}
