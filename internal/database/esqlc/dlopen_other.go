//go:build !(darwin || freebsd || linux || netbsd)

package esqlc

import (
	"fmt"
	"runtime"
)

func dlopen(string) (uintptr, error) {
	return 0, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
}
