//go:build !linux && !windows

package commport

// ListPorts is not supported on this platform.
func ListPorts() ([]string, error) {
	return nil, ErrUnsupportedPlatform
}

// GetPortInfo is not supported on this platform.
func GetPortInfo(portPath string) (*PortInfo, error) {
	return nil, ErrUnsupportedPlatform
}
