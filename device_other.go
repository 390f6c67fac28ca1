//go:build !linux && !windows

package commport

func openDevice(name string) (Device, error) {
	return nil, ErrUnsupportedPlatform
}
