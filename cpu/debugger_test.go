package cpu

import "testing"

type testHandler struct {
	breaks     []uint16
	dataBreaks []uint16
}

func (h *testHandler) OnBreakpoint(cpu *CPU, b *Breakpoint) {
	h.breaks = append(h.breaks, b.Address)
}

func (h *testHandler) OnDataBreakpoint(cpu *CPU, b *DataBreakpoint) {
	h.dataBreaks = append(h.dataBreaks, b.Address)
}

func newDebugCPU(code ...byte) (*CPU, *Debugger, *testHandler) {
	mem := NewFlatMemory()
	mem.StoreBytes(0x1000, code)
	c := NewCPU(mem)
	c.SetPC(0x1000)
	h := &testHandler{}
	d := NewDebugger(h)
	c.AttachDebugger(d)
	return c, d, h
}

func TestBreakpoint(t *testing.T) {
	c, d, h := newDebugCPU(0xea, 0xea, 0xea)
	d.AddBreakpoint(0x1002)
	d.AddBreakpoint(0x1001).Disabled = true

	for i := 0; i < 3; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if len(h.breaks) != 1 || h.breaks[0] != 0x1002 {
		t.Errorf("breakpoints hit incorrect: %v", h.breaks)
	}
}

func TestDataBreakpoint(t *testing.T) {
	c, d, h := newDebugCPU(
		0xa9, 0x01, // LDA #$01
		0x85, 0x10, // STA $10
		0x85, 0x11, // STA $11
		0xa9, 0x02, // LDA #$02
		0x85, 0x11, // STA $11
	)
	d.AddDataBreakpoint(0x10)
	d.AddConditionalDataBreakpoint(0x11, 0x02)

	for i := 0; i < 5; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if len(h.dataBreaks) != 2 || h.dataBreaks[0] != 0x10 || h.dataBreaks[1] != 0x11 {
		t.Errorf("data breakpoints hit incorrect: %v", h.dataBreaks)
	}

	c.DetachDebugger()
	c.SetPC(0x1002)
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if len(h.dataBreaks) != 2 {
		t.Error("detached debugger still notified")
	}
}

func TestBreakpointLists(t *testing.T) {
	d := NewDebugger(nil)
	d.AddBreakpoint(0x3000)
	d.AddBreakpoint(0x1000)
	d.AddBreakpoint(0x2000)
	d.RemoveBreakpoint(0x2000)

	bps := d.GetBreakpoints()
	if len(bps) != 2 || bps[0].Address != 0x1000 || bps[1].Address != 0x3000 {
		t.Errorf("GetBreakpoints incorrect: %v", bps)
	}
	if d.GetBreakpoint(0x2000) != nil {
		t.Error("removed breakpoint still present")
	}

	d.AddDataBreakpoint(0x20)
	d.AddConditionalDataBreakpoint(0x10, 0x05)
	dbps := d.GetDataBreakpoints()
	if len(dbps) != 2 || dbps[0].Address != 0x10 || !dbps[0].Conditional {
		t.Errorf("GetDataBreakpoints incorrect: %v", dbps)
	}
	d.RemoveDataBreakpoint(0x10)
	if d.GetDataBreakpoint(0x10) != nil {
		t.Error("removed data breakpoint still present")
	}
}
