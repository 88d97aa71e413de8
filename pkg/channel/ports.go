// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port present on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s [USB %s:%s", p.Name, strings.ToUpper(p.VID), strings.ToUpper(p.PID))
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.SerialNumber != "" {
		desc += " s/n " + p.SerialNumber
	}
	return desc + "]"
}

// ListPorts enumerates serial ports with USB details where available
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// fall back to bare names
		names, nerr := serial.GetPortsList()
		if nerr != nil {
			return nil, fmt.Errorf("enumerate ports: %w", err)
		}
		out := make([]PortInfo, len(names))
		for i, n := range names {
			out[i] = PortInfo{Name: n}
		}
		return out, nil
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SystemLister lists the system's serial ports for hotplug polling
type SystemLister struct {
	// USBOnly skips built-in UARTs
	USBOnly bool
}

func (l SystemLister) List() ([]string, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		if l.USBOnly && !p.IsUSB {
			continue
		}
		names = append(names, p.Name)
	}
	return names, nil
}
