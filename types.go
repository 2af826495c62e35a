// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package adam6000

import (
	modbus "github.com/hootrhino/gomodbus"
)

// Transport is the subset of Modbus client operations this library consumes.
// Every gomodbus handler (TCP, RTU, RTU over TCP) satisfies it unmodified,
// so a device handle can be driven over any transport the handler supports.
type Transport interface {
	ReadCoils(slaveID uint16, startAddress, quantity uint16) ([]bool, error)          // Read coil block
	ReadDiscreteInputs(slaveID uint16, startAddress, quantity uint16) ([]bool, error) // Read discrete input block
	ReadHoldingRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error)
	ReadInputRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error)
	WriteSingleCoil(slaveID uint16, address uint16, value bool) error
	WriteSingleRegister(slaveID uint16, address, value uint16) error
	WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error
}

// lastErrorProvider is implemented by gomodbus handlers. The handler caches
// a freshly allocated *ModbusError for every exception response, so a pointer
// change across one transaction identifies a device-reported exception.
type lastErrorProvider interface {
	GetLastModbusError() *modbus.ModbusError
}

// ChannelKind identifies one of the per-model channel tables.
type ChannelKind string

const (
	DigitalInput  ChannelKind = "digital input"
	DigitalOutput ChannelKind = "digital output"
	AnalogInput   ChannelKind = "analog input"
	AnalogOutput  ChannelKind = "analog output"
	Counter       ChannelKind = "counter"
)

// WordOrder selects how two consecutive 16-bit registers form a 32-bit value.
type WordOrder string

const (
	OrderABCD WordOrder = "ABCD" // high word first
	OrderCDAB WordOrder = "CDAB" // low word first
)

// Edge is the polarity of a software-controlled output pulse.
type Edge int

const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Falling {
		return "falling"
	}
	return "rising"
}
