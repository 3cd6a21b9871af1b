//go:build !unix

package util

// sameFilesystem is unknown here, so moves always copy
func sameFilesystem(path, dir string) bool {
	return false
}
