//go:build unix

package flock

import (
	"os"

	"golang.org/x/sys/unix"
)

func flock(f *os.File, how int) error {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, how)
		// a signal can interrupt a blocked flock()
		if err != unix.EINTR {
			return err
		}
	}
}

func lock(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return flock(f, how)
}

func unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}
