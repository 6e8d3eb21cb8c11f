package planner

import "strings"

// pathAllowed enforces the printer's sandbox: everything reachable
// through the cloud protocol lives under /usb.
func pathAllowed(path string) bool {
	if path == "/usb" {
		return true
	}
	if !strings.HasPrefix(path, "/usb/") {
		return false
	}
	return !strings.Contains(path, "/../")
}
