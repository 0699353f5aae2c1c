//go:build linux

package vecadd

import (
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// getSystemMemory returns total physical memory as reported by sysinfo(2).
func getSystemMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		klog.V(1).Infof("sysinfo failed, assuming %d bytes: %v", fallbackSystemMemory, err)
		return fallbackSystemMemory
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
