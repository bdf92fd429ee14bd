//go:build windows

package fileutil

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

// restrictToCurrentUser sets a DACL on path that grants GENERIC_ALL only to
// the current user and blocks inherited ACEs. Windows ignores most Unix mode
// bits, so owner-only files need an explicit ACL. Failures are logged and
// swallowed: the file was already created with the requested Unix mode, which
// is the best-effort default on Windows.
func restrictToCurrentUser(path string) error {
	token := windows.GetCurrentProcessToken()

	user, err := token.GetTokenUser()
	if err != nil {
		slog.Warn("fileutil: cannot get current user SID, skipping DACL", "path", path, "err", err)
		return nil
	}

	trustee := windows.TrusteeValueFromSID(user.User.Sid)

	ea := []windows.EXPLICIT_ACCESS{
		{
			AccessPermissions: windows.GENERIC_ALL,
			AccessMode:        windows.SET_ACCESS,
			Inheritance:       windows.NO_INHERITANCE,
			Trustee: windows.TRUSTEE{
				TrusteeForm:  windows.TRUSTEE_IS_SID,
				TrusteeType:  windows.TRUSTEE_IS_USER,
				TrusteeValue: trustee,
			},
		},
	}

	acl, err := windows.ACLFromEntries(ea, nil)
	if err != nil {
		slog.Warn("fileutil: cannot build ACL, skipping DACL", "path", path, "err", err)
		return nil
	}

	secInfo := windows.DACL_SECURITY_INFORMATION | windows.PROTECTED_DACL_SECURITY_INFORMATION
	err = windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.SECURITY_INFORMATION(secInfo),
		nil, // owner SID (unchanged)
		nil, // group SID (unchanged)
		acl, // DACL
		nil, // SACL (unchanged)
	)
	if err != nil {
		slog.Warn("fileutil: cannot set DACL", "path", path, "err", err)
	}
	return nil
}
