//go:build windows

package audit

import "os"

// Windows builds rely on O_APPEND write atomicity for single-record writes;
// no advisory lock is taken.
func lockExclusive(f *os.File) error { return nil }
func unlock(f *os.File) error        { return nil }
