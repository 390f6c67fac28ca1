//go:build windows

package commport

import (
	"sort"

	"golang.org/x/sys/windows/registry"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// ListPorts returns the COM port names registered by the serial drivers.
func ListPorts() ([]string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return nil, nil
		}
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, err
	}
	var ports []string
	for _, n := range names {
		port, _, err := k.GetStringValue(n)
		if err != nil {
			continue
		}
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports, nil
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	for _, p := range ports {
		if p == portPath {
			return &PortInfo{
				Name:        p,
				Path:        `\\.\` + p,
				Description: getPortDescription(p),
			}, nil
		}
	}
	return nil, ErrDeviceNotFound
}
