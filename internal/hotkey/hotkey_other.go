//go:build !darwin && !(linux && cgo)

package hotkey

// New always fails here; use signals to drive capture instead.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
