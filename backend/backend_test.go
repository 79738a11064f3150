package backend

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/framerelay"
)

// fakeBackend is a registry test double; it never opens real devices.
type fakeBackend struct {
	name    string
	initErr error
	inited  bool
	closed  bool
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Init() error {
	if b.initErr != nil {
		return b.initErr
	}
	b.inited = true
	return nil
}

func (b *fakeBackend) Close() { b.closed = true }

func (b *fakeBackend) Producer() framerelay.Device { return nil }
func (b *fakeBackend) Consumer() framerelay.Device { return nil }

func (b *fakeBackend) NewSource(framerelay.Geometry, string) (Source, error) {
	return nil, ErrNotInitialized
}

func (b *fakeBackend) Readback(framerelay.View) (*image.RGBA, error) {
	return nil, ErrNotInitialized
}

// withRegistry swaps in an empty registry for the duration of a test.
func withRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = make(map[string]BackendFactory)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
	})
}

func register(name string, initErr error) {
	Register(name, func() Backend { return &fakeBackend{name: name, initErr: initErr} })
}

func TestRegistryRegisterAndGet(t *testing.T) {
	withRegistry(t)
	register("soft", nil)

	if !IsRegistered("soft") {
		t.Error("soft backend should be registered")
	}
	b := Get("soft")
	if b == nil {
		t.Fatal("Get(soft) returned nil")
	}
	if b.Name() != "soft" {
		t.Errorf("Get(soft).Name() = %q, want %q", b.Name(), "soft")
	}
}

func TestRegistryGetUnregistered(t *testing.T) {
	withRegistry(t)
	if b := Get("nonexistent"); b != nil {
		t.Error("Get(nonexistent) should return nil")
	}
}

func TestRegistryAvailableSorted(t *testing.T) {
	withRegistry(t)
	register("zeta", nil)
	register("alpha", nil)

	got := Available()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("Available() = %v, want [alpha zeta]", got)
	}
}

func TestRegistryDefaultPriority(t *testing.T) {
	withRegistry(t)
	register("soft", nil)
	if b := Default(); b == nil || b.Name() != "soft" {
		t.Fatalf("Default() = %v, want soft", b)
	}

	register("native", nil)
	if b := Default(); b.Name() != "native" {
		t.Errorf("Default() = %q, want native", b.Name())
	}
}

func TestRegistryDefaultEmpty(t *testing.T) {
	withRegistry(t)
	if b := Default(); b != nil {
		t.Errorf("Default() = %v on empty registry", b)
	}
}

func TestOpenNamed(t *testing.T) {
	withRegistry(t)
	register("soft", nil)

	b, err := Open("soft")
	if err != nil {
		t.Fatalf("Open(soft) error = %v", err)
	}
	defer b.Close()
	if !b.(*fakeBackend).inited {
		t.Error("Open did not call Init")
	}

	if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpenFallsBack(t *testing.T) {
	withRegistry(t)
	errNoGPU := errors.New("no gpu")
	register("native", errNoGPU)
	register("soft", nil)

	b, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error = %v", err)
	}
	if b.Name() != "soft" {
		t.Errorf("Open(\"\") = %q, want soft after native failed", b.Name())
	}

	Unregister("soft")
	if _, err := Open(""); !errors.Is(err, errNoGPU) {
		t.Errorf("Open(\"\") = %v, want the native init error", err)
	}

	Unregister("native")
	if _, err := Open(""); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(\"\") on empty registry = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	withRegistry(t)
	register("test-backend", nil)

	if !IsRegistered("test-backend") {
		t.Error("test-backend should be registered")
	}
	Unregister("test-backend")
	if IsRegistered("test-backend") {
		t.Error("test-backend should be unregistered")
	}
}
