//go:build !unix

package phpruntime

import (
	"fmt"
	"runtime"
)

func freeSpace(path string) (float64, error) {
	return 0, fmt.Errorf("free space at %s: not supported on %s", path, runtime.GOOS)
}
