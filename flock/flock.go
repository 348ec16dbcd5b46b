// Package flock takes advisory whole-file locks on an open file.
//
// Locks are advisory: only processes that also lock the file honor them.
// All calls block until the lock is granted; there is no timeout.
//
// On unix the lock belongs to the open file description, so two separate
// os.Open calls on the same path conflict even inside one process.
// Closing the file releases the lock.
package flock

import "os"

// Lock takes an exclusive lock on f, waiting for readers and other writers.
func Lock(f *os.File) error {
	return lock(f, true)
}

// RLock takes a shared lock on f. Many readers can hold it at once.
func RLock(f *os.File) error {
	return lock(f, false)
}

// Unlock releases a lock taken with Lock or RLock.
func Unlock(f *os.File) error {
	return unlock(f)
}
