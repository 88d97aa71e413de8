// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"bytes"

	"github.com/Thermoquad/seaport/pkg/nmea"
)

// opcode is one row of the datagram table. normalize returns the sentence
// body to emit, or nil.
type opcode struct {
	command   byte
	attribute byte
	name      string
	pattern   []byte // fixed leading payload bytes, if any
	normalize func(d *Decoder, f *Frame) []byte
}

var opcodes = []opcode{
	{command: CmdDepth, attribute: 0x02, name: "depth", normalize: (*Decoder).depth},
	{command: CmdEquipmentID, attribute: 0x05, name: "equipment id", normalize: (*Decoder).equipment},
	{command: CmdSpeed, attribute: 0x01, name: "speed", normalize: (*Decoder).speed},
	{command: CmdWaterTemp, attribute: 0x01, name: "water temperature", normalize: (*Decoder).waterTemp},
	{command: CmdDisplayUnits, attribute: 0x02, name: "display units", pattern: []byte{0x00, 0x00}, normalize: (*Decoder).displayUnits},
	{command: CmdSpeedPrecise, attribute: 0x04, name: "speed (precise)", normalize: (*Decoder).speedPrecise},
	{command: CmdWaterTempFine, attribute: 0x01, name: "water temperature (fine)", normalize: (*Decoder).waterTempFine},
	{command: CmdLampIntensity, attribute: 0x00, name: "lamp intensity", normalize: (*Decoder).lamp},
	{command: CmdUnknown60, attribute: 0x0C, name: "unknown 0x60", normalize: (*Decoder).logOnly},
	{command: CmdUnknown65, attribute: 0x00, name: "unknown 0x65", pattern: []byte{0x02}, normalize: nil},
}

var opcodeTable [256]*opcode

func init() {
	for i := range opcodes {
		opcodeTable[opcodes[i].command] = &opcodes[i]
	}
}

func lookup(command byte) *opcode {
	return opcodeTable[command]
}

// OpcodeName returns a readable name for a command byte
func OpcodeName(command byte) string {
	if op := lookup(command); op != nil {
		return op.name
	}
	return "unrecognized"
}

// equipment is a known 0x01 device identification payload
type equipment struct {
	id   []byte
	name string
}

var equipmentIDs = []equipment{
	{[]byte{0x00, 0x00, 0x00, 0x60, 0x01, 0x00}, "Course Computer 400G"},
	{[]byte{0x04, 0xBA, 0x20, 0x28, 0x01, 0x00}, "ST60 Tridata"},
	{[]byte{0x70, 0x99, 0x10, 0x28, 0x01, 0x00}, "ST60 Log"},
	{[]byte{0xF3, 0x18, 0x00, 0x26, 0x0F, 0x06}, "ST80 Masterview"},
	{[]byte{0xFA, 0x03, 0x00, 0x30, 0x07, 0x03}, "ST80 Maxi Display"},
	{[]byte{0xFF, 0xFF, 0xFF, 0xD0, 0x00, 0x00}, "Smart Controller Remote Control Handset"},
}

// EquipmentName returns the device announced by a 0x01 datagram payload
func EquipmentName(payload []byte) (string, bool) {
	for _, e := range equipmentIDs {
		if bytes.Equal(e.id, payload) {
			return e.name, true
		}
	}
	return "", false
}

func (d *Decoder) depth(f *Frame) []byte {
	flags := f.Payload()[0]
	if flags&DepthAnchorAlarm != 0 {
		d.logger.Infow("depth alarm", "alarm", "anchor")
	}
	if flags&DepthDeepAlarm != 0 {
		d.logger.Infow("depth alarm", "alarm", "deep water")
	}
	if flags&DepthShallow != 0 {
		d.logger.Infow("depth alarm", "alarm", "shallow water")
	}
	if flags&DepthDefective != 0 {
		d.logger.Warnw("depth transducer defective")
		return nil
	}
	feet := float64(f.Uint16(1)) / 10
	return nmea.DBT(Talker, feet)
}

func (d *Decoder) equipment(f *Frame) []byte {
	name, ok := EquipmentName(f.Payload())
	if !ok {
		d.logger.Debugw("unknown equipment", "id", hexDump(f.Payload()))
		return nil
	}
	body, err := nmea.TXT(Talker, name)
	if err != nil {
		return nil
	}
	return body
}

func (d *Decoder) speed(f *Frame) []byte {
	if d.betterSpeed {
		return nil
	}
	return nmea.VHW(Talker, float64(f.Uint16(0))/10)
}

func (d *Decoder) waterTemp(f *Frame) []byte {
	if d.betterTemperature {
		return nil
	}
	celsius := int8(f.Payload()[0])
	return nmea.MTW(Talker, float64(celsius))
}

func (d *Decoder) displayUnits(f *Frame) []byte {
	d.logger.Debugw("display units", "units", f.Payload()[2])
	return nil
}

func (d *Decoder) speedPrecise(f *Frame) []byte {
	d.betterSpeed = true
	return nmea.VHW(Talker, float64(f.Uint16(0))/100)
}

func (d *Decoder) waterTempFine(f *Frame) []byte {
	d.betterTemperature = true
	celsius := (float64(f.Uint16(0)) - 100) / 10
	return nmea.MTW(Talker, celsius)
}

func (d *Decoder) lamp(f *Frame) []byte {
	level := "?"
	for i, code := range LampCodes {
		if f.Payload()[0] == code {
			level = string(rune('0' + i))
			break
		}
	}
	body, err := nmea.TXT(Talker, "Light L"+level)
	if err != nil {
		return nil
	}
	return body
}

func (d *Decoder) logOnly(f *Frame) []byte {
	d.logger.Debugw("datagram", "command", f.Command(), "raw", hexDump(f.Bytes()))
	return nil
}
