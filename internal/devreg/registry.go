// Package devreg is the static, read-only-after-startup map from a
// subdevice's identity tuple to its driver constructor, built once at
// process init the way devicecode-go's own registries are.
package devreg

import (
	"fmt"
	"sync"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/devices"
)

// Constructor builds a fresh, unused driver instance for one identity.
type Constructor func() devices.Device

var (
	mu    sync.RWMutex
	ctors = map[devices.IdentityTuple]Constructor{}
)

// Register installs a constructor for identity. It panics on a duplicate
// registration: the registry is built once, at init time, by driver files
// calling Register from their own package-level init(); a collision there
// is a programming error, not a runtime condition.
func Register(identity devices.IdentityTuple, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := ctors[identity]; exists {
		panic(fmt.Sprintf("devreg: duplicate registration for %+v", identity))
	}
	ctors[identity] = ctor
}

// MakeDriver constructs a fresh driver for identity, or errcode.NoDriver
// if nothing is registered for it.
func MakeDriver(identity devices.IdentityTuple) (devices.Device, error) {
	mu.RLock()
	ctor, ok := ctors[identity]
	mu.RUnlock()
	if !ok {
		return nil, errcode.NoDriver
	}
	return ctor(), nil
}

// Known reports whether identity has a registered driver, without
// constructing one.
func Known(identity devices.IdentityTuple) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := ctors[identity]
	return ok
}

func init() {
	Register(devices.EL2008IdentityA, func() devices.Device { return devices.NewEL2008() })
	Register(devices.EL2008IdentityB, func() devices.Device { return devices.NewEL2008() })
	Register(devices.EL2008IdentityC, func() devices.Device { return devices.NewEL2008() })
	Register(devices.EL2004IdentityA, func() devices.Device { return devices.NewEL2004() })
	Register(devices.EL2004IdentityB, func() devices.Device { return devices.NewEL2004() })
	Register(devices.EL1008IdentityA, func() devices.Device { return devices.NewEL1008() })
	Register(devices.EK1100Identity, func() devices.Device { return devices.NewEK1100() })
	Register(devices.Wago750354Identity, func() devices.Device { return devices.NewWagoCoupler(nil) })
}
