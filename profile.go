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
	"fmt"
	"sort"
)

// ChannelBlock describes one contiguous channel table in the module's Modbus
// image: Count channels starting at Base, Stride addresses apart. A zero
// Count means the model has no such table.
type ChannelBlock struct {
	Count  int
	Base   uint16
	Stride uint16
}

// Address returns the physical address of channel index within the block.
// Callers must have validated the index against Count.
func (b ChannelBlock) Address(index int) uint16 {
	return b.Base + uint16(index)*b.Stride
}

// AnalogBlock is a ChannelBlock with the model's documented value handling.
// Scale is applied to the raw register value on reads and divided out on
// writes; 1.0 leaves raw counts untouched. RawMax is the inclusive upper
// bound accepted for writes (the DAC span on output blocks).
type AnalogBlock struct {
	ChannelBlock
	Scale  float64
	RawMax uint16
}

// Profile is the capability table for one ADAM-6000 model: per channel kind
// the channel count and the base address at which channel 0 begins. Address
// blocks of different kinds never overlap within one model; the tables are
// fixed vendor data and never mutated at runtime.
type Profile struct {
	Model string

	DigitalInputs  ChannelBlock // discrete input space
	DigitalOutputs ChannelBlock // coil space, readable back
	AnalogInputs   AnalogBlock  // input register space
	AnalogOutputs  AnalogBlock  // holding register space

	Counters     ChannelBlock // input register space, two registers per channel
	CounterClear ChannelBlock // coil space; Count 0 when no clear block exists

	// WordOrder is how every multi-register value on this model (counters,
	// pulse widths and counts, wide analog channels) combines its two
	// registers. Empty means OrderABCD.
	WordOrder WordOrder

	// Pulse output configuration and feedback (digital models only).
	PulseLowWidths   ChannelBlock // holding register space, 32-bit
	PulseHighWidths  ChannelBlock // holding register space, 32-bit
	AbsolutePulse    ChannelBlock // input register space, 32-bit
	IncrementalPulse ChannelBlock // input register space, 32-bit

	HasDiagnostics  bool
	DiagnosticsAddr uint16
}

// Series-wide addresses, common to every ADAM-6000 module.
const (
	moduleNameBase  uint16 = 210 // two input registers, hex-nibble packed
	gclFlagsAddr    uint16 = 304 // input register
	gclClearBase    uint16 = 300 // coils, one per GCL counter
	gclCounterBase  uint16 = 310 // input registers, two per GCL counter
	gclCounterCount        = 8
)

// profiles maps model identifiers to their capability tables. Addresses
// follow the Advantech ADAM-6000 Modbus address mapping tables; a module
// revision that moves a block only needs an edit here.
var profiles = map[string]*Profile{
	"ADAM-6050": {
		Model:          "ADAM-6050",
		DigitalInputs:  ChannelBlock{Count: 12, Base: 0, Stride: 1},
		DigitalOutputs: ChannelBlock{Count: 6, Base: 16, Stride: 1},
		Counters:       ChannelBlock{Count: 12, Base: 0, Stride: 2},
		CounterClear:   ChannelBlock{Count: 12, Base: 32, Stride: 1},
		WordOrder:      OrderABCD,
	},
	"ADAM-6052": {
		Model:            "ADAM-6052",
		DigitalInputs:    ChannelBlock{Count: 8, Base: 0, Stride: 1},
		DigitalOutputs:   ChannelBlock{Count: 8, Base: 16, Stride: 1},
		Counters:         ChannelBlock{Count: 8, Base: 0, Stride: 2},
		CounterClear:     ChannelBlock{Count: 8, Base: 32, Stride: 1},
		WordOrder:        OrderABCD,
		PulseLowWidths:   ChannelBlock{Count: 8, Base: 16, Stride: 2},
		PulseHighWidths:  ChannelBlock{Count: 8, Base: 32, Stride: 2},
		AbsolutePulse:    ChannelBlock{Count: 8, Base: 48, Stride: 2},
		IncrementalPulse: ChannelBlock{Count: 8, Base: 64, Stride: 2},
		HasDiagnostics:   true,
		DiagnosticsAddr:  306,
	},
	"ADAM-6060": {
		Model:            "ADAM-6060",
		DigitalInputs:    ChannelBlock{Count: 6, Base: 0, Stride: 1},
		DigitalOutputs:   ChannelBlock{Count: 6, Base: 16, Stride: 1},
		Counters:         ChannelBlock{Count: 6, Base: 0, Stride: 2},
		CounterClear:     ChannelBlock{Count: 6, Base: 32, Stride: 1},
		WordOrder:        OrderABCD,
		PulseLowWidths:   ChannelBlock{Count: 6, Base: 12, Stride: 2},
		PulseHighWidths:  ChannelBlock{Count: 6, Base: 24, Stride: 2},
		AbsolutePulse:    ChannelBlock{Count: 6, Base: 36, Stride: 2},
		IncrementalPulse: ChannelBlock{Count: 6, Base: 48, Stride: 2},
	},
	"ADAM-6015": {
		Model:        "ADAM-6015",
		AnalogInputs: AnalogBlock{ChannelBlock: ChannelBlock{Count: 7, Base: 0, Stride: 1}, Scale: 1.0, RawMax: 0xFFFF},
	},
	"ADAM-6017": {
		Model:          "ADAM-6017",
		AnalogInputs:   AnalogBlock{ChannelBlock: ChannelBlock{Count: 8, Base: 0, Stride: 1}, Scale: 1.0, RawMax: 0xFFFF},
		DigitalOutputs: ChannelBlock{Count: 2, Base: 16, Stride: 1},
	},
	"ADAM-6024": {
		Model:          "ADAM-6024",
		DigitalInputs:  ChannelBlock{Count: 2, Base: 0, Stride: 1},
		DigitalOutputs: ChannelBlock{Count: 2, Base: 16, Stride: 1},
		AnalogInputs:   AnalogBlock{ChannelBlock: ChannelBlock{Count: 6, Base: 0, Stride: 1}, Scale: 1.0, RawMax: 0xFFFF},
		// 12-bit DAC span
		AnalogOutputs: AnalogBlock{ChannelBlock: ChannelBlock{Count: 2, Base: 0, Stride: 1}, Scale: 1.0, RawMax: 4095},
	},
}

// LookupProfile returns the capability table for a model identifier.
func LookupProfile(model string) (*Profile, error) {
	p, ok := profiles[model]
	if !ok {
		return nil, fmt.Errorf("adam6000: %q: %w", model, ErrUnknownModel)
	}
	return p, nil
}

// Models lists the supported model identifiers in sorted order.
func Models() []string {
	models := make([]string, 0, len(profiles))
	for model := range profiles {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// joinWords assembles two consecutive registers into a 32-bit value
// according to the profile's word order.
func joinWords(words []uint16, order WordOrder) uint32 {
	if len(words) < 2 {
		return 0
	}
	if order == OrderCDAB {
		return uint32(words[1])<<16 | uint32(words[0])
	}
	return uint32(words[0])<<16 | uint32(words[1])
}

// splitWords is the inverse of joinWords.
func splitWords(value uint32, order WordOrder) []uint16 {
	high := uint16(value >> 16)
	low := uint16(value & 0xFFFF)
	if order == OrderCDAB {
		return []uint16{low, high}
	}
	return []uint16{high, low}
}
