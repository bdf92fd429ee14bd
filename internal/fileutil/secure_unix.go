//go:build !windows

package fileutil

// restrictToCurrentUser is a no-op on platforms where the Unix permission
// bits already confine access to the owner.
func restrictToCurrentUser(string) error { return nil }
