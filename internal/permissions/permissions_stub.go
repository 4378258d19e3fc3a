//go:build !darwin

package permissions

// New returns the platform capability collaborator. Outside macOS capture
// needs no runtime authorization.
func New() Platform {
	return Static{Supported: true, Permission: PermissionAuthorized}
}
