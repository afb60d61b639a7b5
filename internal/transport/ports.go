package transport

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// allow tests to replace the enumerator
var detailedPortsList = enumerator.GetDetailedPortsList

// ListPorts returns the serial ports present on the system, sorted by name.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
			Vendor:       vendorFor(d),
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

func vendorFor(d *enumerator.PortDetails) string {
	if !d.IsUSB {
		return ""
	}
	return LookupVendor(d.VID, d.PID)
}
