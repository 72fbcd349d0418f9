package sysinfo

import "golang.org/x/sys/unix"

func kernelVersion() string {
	var buf unix.Utsname
	if err := unix.Uname(&buf); err != nil {
		return "Unknown"
	}
	return unix.ByteSliceToString(buf.Sysname[:]) + " " + unix.ByteSliceToString(buf.Release[:])
}
