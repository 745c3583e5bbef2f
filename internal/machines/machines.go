// Package machines wires every concrete machine implementation into a
// machine.Registry. testel2008 is the only one; building a machine of any
// other identification yields a registry-miss error (errcode.NoDriver)
// rather than a panic.
package machines

import (
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/machines/testel2008"
)

// RegisterAll installs every implemented machine type into reg.
func RegisterAll(reg *machine.Registry) {
	reg.Register(testel2008.Identification, testel2008.New)
}
