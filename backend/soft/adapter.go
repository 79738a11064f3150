// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/gate"
)

// adapterIDs hands out adapter identifiers. IDs start above zero so a zero
// AdapterID always means "not set".
var adapterIDs atomic.Uint64

// Adapter is a simulated physical GPU. Surfaces created by any of its
// devices can be opened by handle on any other of its devices.
type Adapter struct {
	id uint64

	mu         sync.Mutex
	surfaces   map[framerelay.SharedHandle]*surface
	nextHandle framerelay.SharedHandle
}

// NewAdapter creates an adapter with a process-unique ID.
func NewAdapter() *Adapter {
	return &Adapter{
		id:         adapterIDs.Add(1),
		surfaces:   make(map[framerelay.SharedHandle]*surface),
		nextHandle: 0x100,
	}
}

// ID returns the adapter identifier reported by its devices' AdapterID.
func (a *Adapter) ID() uint64 { return a.id }

// NewDevice creates a device on this adapter. name appears in labels and
// log output only.
func (a *Adapter) NewDevice(name string, opts ...DeviceOption) *Device {
	return newDevice(a, name, opts...)
}

// Surfaces returns the number of live surfaces, that is surfaces with at
// least one binding on some device.
func (a *Adapter) Surfaces() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.surfaces)
}

// surface is the memory behind a shared texture. Every binding on every
// device points at the same surface.
type surface struct {
	adapter *Adapter
	handle  framerelay.SharedHandle
	geom    framerelay.Geometry
	label   string
	pix     []byte
	gate    *gate.Gate // nil for unkeyed surfaces

	refs int // guarded by adapter.mu
}

func (a *Adapter) newSurface(g framerelay.Geometry, label string, keyed bool) *surface {
	s := &surface{
		adapter: a,
		geom:    g,
		label:   label,
		pix:     make([]byte, g.Width*g.Height*g.BytesPerPixel()),
		refs:    1,
	}
	if keyed {
		s.gate = gate.New(gate.Writable)
	}

	a.mu.Lock()
	s.handle = a.nextHandle
	a.nextHandle += 4
	a.surfaces[s.handle] = s
	a.mu.Unlock()
	return s
}

// open adds a binding to the surface named by h.
func (a *Adapter) open(h framerelay.SharedHandle) (*surface, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.surfaces[h]
	if !ok {
		return nil, false
	}
	s.refs++
	return s, true
}

// unref drops a binding. The last one frees the surface and closes its gate.
func (a *Adapter) unref(s *surface) {
	a.mu.Lock()
	s.refs--
	last := s.refs == 0
	if last {
		delete(a.surfaces, s.handle)
	}
	a.mu.Unlock()

	if last && s.gate != nil {
		s.gate.Close()
	}
}

func (s *surface) stride() int {
	return s.geom.Width * s.geom.BytesPerPixel()
}

func (s *surface) row(y int) []byte {
	stride := s.stride()
	return s.pix[y*stride : (y+1)*stride]
}
