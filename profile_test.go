package adam6000

import (
	"errors"
	"testing"
)

func TestLookupProfile(t *testing.T) {
	for _, model := range Models() {
		p, err := LookupProfile(model)
		if err != nil {
			t.Fatalf("LookupProfile(%s) failed: %v", model, err)
		}
		if p.Model != model {
			t.Errorf("Expected model %s, but got %s", model, p.Model)
		}
	}
}

func TestLookupProfileUnknown(t *testing.T) {
	for _, model := range []string{"", "ADAM-9999", "adam-6052", "6052"} {
		if _, err := LookupProfile(model); !errors.Is(err, ErrUnknownModel) {
			t.Errorf("LookupProfile(%q): expected ErrUnknownModel, got %v", model, err)
		}
	}
}

func TestChannelBlockAddress(t *testing.T) {
	for _, model := range Models() {
		p, _ := LookupProfile(model)
		blocks := map[string]ChannelBlock{
			"digital inputs":  p.DigitalInputs,
			"digital outputs": p.DigitalOutputs,
			"analog inputs":   p.AnalogInputs.ChannelBlock,
			"analog outputs":  p.AnalogOutputs.ChannelBlock,
			"counters":        p.Counters,
			"counter clear":   p.CounterClear,
		}
		for name, block := range blocks {
			for i := 0; i < block.Count; i++ {
				want := block.Base + uint16(i)*block.Stride
				if got := block.Address(i); got != want {
					t.Errorf("%s %s[%d]: expected address %d, but got %d", model, name, i, want, got)
				}
			}
		}
	}
}

// Within one model, no two (kind, index) pairs may map to the same physical
// address in the same Modbus address space. Series-wide addresses (module
// name, GCL block, diagnostics) participate too.
func TestNoAddressOverlap(t *testing.T) {
	type span struct {
		block ChannelBlock
		width uint16 // registers occupied per channel
	}
	for _, model := range Models() {
		p, _ := LookupProfile(model)

		spaces := map[string][]span{
			"discrete": {
				{p.DigitalInputs, 1},
			},
			"coil": {
				{p.DigitalOutputs, 1},
				{p.CounterClear, 1},
				{ChannelBlock{Count: gclCounterCount, Base: gclClearBase, Stride: 1}, 1},
			},
			"input": {
				{p.AnalogInputs.ChannelBlock, p.AnalogInputs.Stride},
				{p.Counters, 2},
				{p.AbsolutePulse, 2},
				{p.IncrementalPulse, 2},
				{ChannelBlock{Count: 1, Base: moduleNameBase, Stride: 2}, 2},
				{ChannelBlock{Count: 1, Base: gclFlagsAddr, Stride: 1}, 1},
				{ChannelBlock{Count: gclCounterCount, Base: gclCounterBase, Stride: 2}, 2},
			},
			"holding": {
				{p.AnalogOutputs.ChannelBlock, p.AnalogOutputs.Stride},
				{p.PulseLowWidths, 2},
				{p.PulseHighWidths, 2},
			},
		}
		if p.HasDiagnostics {
			spaces["input"] = append(spaces["input"],
				span{ChannelBlock{Count: 1, Base: p.DiagnosticsAddr, Stride: 1}, 1})
		}

		for space, spans := range spaces {
			used := map[uint16]bool{}
			for _, s := range spans {
				for i := 0; i < s.block.Count; i++ {
					addr := s.block.Address(i)
					for w := uint16(0); w < s.width; w++ {
						if used[addr+w] {
							t.Errorf("%s: %s address %d claimed twice", model, space, addr+w)
						}
						used[addr+w] = true
					}
				}
			}
		}
	}
}

func TestJoinWords(t *testing.T) {
	if got := joinWords([]uint16{0x0001, 0x0000}, OrderABCD); got != 65536 {
		t.Errorf("Expected 65536, but got %d", got)
	}
	if got := joinWords([]uint16{0x0001, 0x0000}, OrderCDAB); got != 1 {
		t.Errorf("Expected 1, but got %d", got)
	}
	if got := joinWords([]uint16{0x1234, 0x5678}, OrderABCD); got != 0x12345678 {
		t.Errorf("Expected 0x12345678, but got 0x%08X", got)
	}
}

func TestSplitWords(t *testing.T) {
	assertUint16Equal(t, []uint16{0x0001, 0x0000}, splitWords(65536, OrderABCD))
	assertUint16Equal(t, []uint16{0x0000, 0x0001}, splitWords(65536, OrderCDAB))

	for _, order := range []WordOrder{OrderABCD, OrderCDAB} {
		for _, v := range []uint32{0, 1, 65535, 65536, 0xDEADBEEF, 0xFFFFFFFF} {
			if got := joinWords(splitWords(v, order), order); got != v {
				t.Errorf("%s: round trip of %d returned %d", order, v, got)
			}
		}
	}
}
