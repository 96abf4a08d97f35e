//go:build !unix && !windows

package lockfile

import "os"

// Platforms without file locking fall back to no exclusion.
func lock(*os.File) error { return nil }

func unlock(*os.File) error { return nil }
