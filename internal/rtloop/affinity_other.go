//go:build !linux

package rtloop

import "fmt"

func pinToCPU(cpu int) error {
	return fmt.Errorf("rtloop: cpu affinity is only supported on linux")
}

func setRealtimePriority() error {
	return fmt.Errorf("rtloop: realtime scheduling is only supported on linux")
}
