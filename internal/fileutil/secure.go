// Package fileutil provides filesystem helpers for files that hold
// credentials or other user-private data.
package fileutil

import "os"

// SecureWriteFile writes data to the named file, creating it if necessary.
// For owner-only modes the file is additionally shielded from other users on
// platforms where the Unix mode bits alone are not enough (Windows DACLs).
func SecureWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	if isOwnerOnly(perm) {
		return restrictToCurrentUser(path)
	}
	return nil
}

// SecureMkdirAll creates a directory path and all parents that do not yet
// exist, applying the owner-only shield to the final directory when the mode
// calls for it.
func SecureMkdirAll(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	if isOwnerOnly(perm) {
		return restrictToCurrentUser(path)
	}
	return nil
}

// SecureChmod changes the mode of the named file.
func SecureChmod(path string, perm os.FileMode) error {
	if err := os.Chmod(path, perm); err != nil {
		return err
	}
	if isOwnerOnly(perm) {
		return restrictToCurrentUser(path)
	}
	return nil
}

// isOwnerOnly reports whether the permission mode grants nothing to group or other.
func isOwnerOnly(perm os.FileMode) bool {
	return perm&0077 == 0
}
