package commport

import "strings"

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	VendorID     string
	ProductID    string
	SerialNumber string
	Manufacturer string
	Product      string
}

// IsUSB reports whether the port belongs to a USB device.
func (p PortInfo) IsUSB() bool {
	return p.VendorID != "" && p.ProductID != ""
}

// portKinds maps device name prefixes to a description. Longer prefixes
// come first so that ttySAC is not taken for ttyS.
var portKinds = []struct {
	prefix      string
	description string
}{
	{"ttyUSB", "USB Serial Port"},
	{"ttyACM", "USB CDC/ACM Device"},
	{"ttyAMA", "ARM Serial Port"},
	{"ttymxc", "i.MX Serial Port"},
	{"ttySAC", "Samsung Serial Port"},
	{"ttyTHS", "Tegra Serial Port"},
	{"ttyO", "OMAP Serial Port"},
	{"ttyS", "Standard Serial Port"},
	{"COM", "Communications Port"},
}

// portKind returns the entry for name, requiring digits after the prefix.
func portKind(name string) (string, bool) {
	for _, k := range portKinds {
		rest, ok := strings.CutPrefix(name, k.prefix)
		if ok && rest != "" && strings.Trim(rest, "0123456789") == "" {
			return k.description, true
		}
	}
	return "", false
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	if d, ok := portKind(name); ok {
		return d
	}
	return "Serial Port"
}
