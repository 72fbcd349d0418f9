//go:build !linux

package sysinfo

import "runtime"

func kernelVersion() string {
	return runtime.GOOS
}
