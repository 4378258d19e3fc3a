package permissions

import "fmt"

// Status mirrors the platform's authorization states.
type Status int

const (
	PermissionNotDetermined Status = 0
	PermissionRestricted    Status = 1
	PermissionDenied        Status = 2
	PermissionAuthorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case PermissionNotDetermined:
		return "not-determined"
	case PermissionRestricted:
		return "restricted"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Capability is the typed answer to "can this process capture audio".
type Capability struct {
	Supported  bool
	Permission Status
	// Reason explains an unsupported platform.
	Reason string
}

// Granted reports whether capture is both supported and authorized.
func (c Capability) Granted() bool {
	return c.Supported && c.Permission == PermissionAuthorized
}

// Platform answers capability queries for the capture backend.
type Platform interface {
	Query() Capability
	RequestPermission() (Status, error)
}

// Static is a Platform with a fixed answer, for tests and headless use.
type Static Capability

func (s Static) Query() Capability { return Capability(s) }

func (s Static) RequestPermission() (Status, error) { return s.Permission, nil }

// EnsurePermissions checks capture permission and requests it when it has
// not been decided yet.
func EnsurePermissions(p Platform) error {
	c := p.Query()
	if !c.Supported {
		return fmt.Errorf("audio capture not supported: %s", c.Reason)
	}
	if c.Permission == PermissionAuthorized {
		return nil
	}

	status, err := p.RequestPermission()
	if err != nil {
		return fmt.Errorf("failed to request microphone permission: %w", err)
	}
	if status != PermissionAuthorized {
		return fmt.Errorf("microphone permission not granted (%s)", status)
	}
	return nil
}
