// fsutil/osinfo.go
package fsutil

import "runtime"

// GetNumCPU returns the number of logical CPUs. The config's default
// extraction worker pool width is the same value, read through
// runtime.NumCPU directly rather than through this function.
func GetNumCPU() int {
	return runtime.NumCPU()
}
