package machine

import (
	"fmt"
	"sync"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/identify"
)

// Identification names a machine type: every physical machine of this
// vendor/type is built by the same Constructor, keyed on the role-tagged
// device group's shared MachineIdentificationUnique.machine fields.
type Identification struct {
	VendorID  uint16
	MachineID uint16
}

// Registry is the static, read-only-after-startup map from machine type to
// constructor, mirroring the device registry's shape one layer up.
type Registry struct {
	mu    sync.RWMutex
	ctors map[Identification]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[Identification]Constructor{}}
}

// Register installs ctor for id. It panics on a duplicate registration,
// the same as the device registry: this table is built once at startup.
func (r *Registry) Register(id Identification, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[id]; exists {
		panic(fmt.Sprintf("machine: duplicate registration for %+v", id))
	}
	r.ctors[id] = ctor
}

// New looks up the constructor for unique's machine type and builds a
// Machine from params. errcode.NoDriver surfaces if no machine type is
// registered for it (the device-layer code reuses NoDriver; there is no
// separate "no machine type" code in the error table).
func (r *Registry) New(unique identify.MachineIdentificationUnique, params NewParams) (Machine, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[Identification{VendorID: unique.VendorID, MachineID: unique.MachineID}]
	r.mu.RUnlock()
	if !ok {
		return nil, errcode.NoDriver
	}
	return ctor(params)
}

// Known reports whether a constructor is registered for id.
func (r *Registry) Known(id Identification) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[id]
	return ok
}
