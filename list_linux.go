//go:build linux

package commport

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	devDir      = "/dev"
	sysClassTTY = "/sys/class/tty"
)

// ListPorts returns the serial device nodes under /dev, sorted by path.
// Virtual terminals and pseudo-terminals are not included.
func ListPorts() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if _, ok := portKind(entry.Name()); !ok {
			continue
		}
		path := filepath.Join(devDir, entry.Name())
		if isCharacterDevice(path) {
			ports = append(ports, path)
		}
	}
	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}
	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info)
	}
	return info, nil
}

// enrichUSBInfo fills the USB descriptor fields from sysfs. The tty's
// device link points at the USB interface; the descriptor files live in
// the first parent directory that has an idVendor file.
func enrichUSBInfo(info *PortInfo) {
	dir, err := filepath.EvalSymlinks(filepath.Join(sysClassTTY, info.Name, "device"))
	if err != nil {
		return
	}
	for ; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		vendor := readSysfs(dir, "idVendor")
		if vendor == "" {
			continue
		}
		info.VendorID = vendor
		info.ProductID = readSysfs(dir, "idProduct")
		info.SerialNumber = readSysfs(dir, "serial")
		info.Manufacturer = readSysfs(dir, "manufacturer")
		info.Product = readSysfs(dir, "product")
		if info.Product != "" {
			info.Description = info.Product
		}
		return
	}
}

func readSysfs(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
