package cpu

import (
	"bytes"
	"log"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
)

// assembleROM builds a minimal ROM image from raw opcode bytes, padded to
// at least size bytes.
func assembleROM(t *testing.T, size int, prog ...uint8) *Chip {
	t.Helper()
	p, err := New(prog, size)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestResetState(t *testing.T) {
	p := assembleROM(t, 16, 0x00)
	if p.PC != 0 {
		t.Errorf("PC = %d, want 0", p.PC)
	}
	if p.PSW != pswReserve {
		t.Errorf("PSW = 0x%02X, want 0x%02X", p.PSW, pswReserve)
	}
	if p.RB != 0 || p.MB != 0 {
		t.Errorf("RB/MB = %d/%d, want 0/0", p.RB, p.MB)
	}
	if !p.T0 || !p.T1 {
		t.Errorf("T0/T1 = %v/%v, want true/true", p.T0, p.T1)
	}
}

func TestCarrySetOnAdd(t *testing.T) {
	// MOV A,#0xFF ; ADD A,#0x02 -> carry set, ACC=0x01.
	p := assembleROM(t, 16, 0x23, 0xFF, 0x03, 0x02)
	p.Step()
	p.Step()
	if p.ACC != 0x01 {
		t.Errorf("ACC = 0x%02X, want 0x01", p.ACC)
	}
	if p.PSW&pswCarry == 0 {
		t.Errorf("carry not set after overflow")
	}
}

func TestAddcUsesCarry(t *testing.T) {
	// MOV A,#0xFF; ADD A,#0x01 (carry set); MOV A,#0x00; ADDC A,#0x01
	p := assembleROM(t, 16, 0x23, 0xFF, 0x03, 0x01, 0x23, 0x00, 0x13, 0x01)
	for i := 0; i < 4; i++ {
		p.Step()
	}
	if p.ACC != 0x02 {
		t.Errorf("ACC = 0x%02X, want 0x02 (carry-in consumed)", p.ACC)
	}
}

func TestRegisterBankSwitch(t *testing.T) {
	// MOV R0,#0x11; SEL RB1; MOV R0,#0x22; SEL RB0.
	p := assembleROM(t, 16, 0xB8, 0x11, 0xD5, 0xB8, 0x22, 0xC5)
	p.Step() // MOV R0,#0x11 in bank0
	p.Step() // SEL RB1
	if p.RB != 1 {
		t.Fatalf("RB = %d, want 1", p.RB)
	}
	p.Step() // MOV R0,#0x22 in bank1
	p.Step() // SEL RB0
	if p.RB != 0 {
		t.Fatalf("RB = %d, want 0", p.RB)
	}
	if got := p.GetReg(0); got != 0x11 {
		t.Errorf("bank0 R0 = 0x%02X, want 0x11", got)
	}
	p.RB = 1
	if got := p.GetReg(0); got != 0x22 {
		t.Errorf("bank1 R0 = 0x%02X, want 0x22", got)
	}
}

func TestCallReturnRoundTrip(t *testing.T) {
	// 0: CALL 0x008 ; 2: NOP (return lands here)
	// 8: INC A ; 9: RET
	prog := make([]uint8, 16)
	prog[0], prog[1] = 0x14, 0x08 // CALL a11 with page bits 0
	prog[2] = 0x00                     // NOP, return address
	prog[8] = 0x17                     // INC A
	prog[9] = 0x83                     // RET
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Step() // CALL
	if p.PC != 8 {
		t.Fatalf("PC after CALL = %d, want 8", p.PC)
	}
	if sp := p.PSW & pswSP; sp != 1 {
		t.Fatalf("SP after CALL = %d, want 1", sp)
	}
	p.Step() // INC A
	p.Step() // RET
	if p.PC != 2 {
		t.Fatalf("PC after RET = %d, want 2", p.PC)
	}
	if sp := p.PSW & pswSP; sp != 0 {
		t.Fatalf("SP after RET = %d, want 0", sp)
	}
	if p.ACC != 1 {
		t.Errorf("ACC = %d, want 1", p.ACC)
	}
}

func TestRetrRestoresPSWNibble(t *testing.T) {
	// CALL while PSW carry set and bank 1 selected; RETR must bring both
	// back, unlike the source's buggy reconstruction (see opRetr doc).
	prog := make([]uint8, 16)
	prog[0], prog[1] = 0x14, 0x08 // CALL 0x008
	prog[8] = 0x93                // RETR
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.setCarryBit(true)
	p.RB = 1
	p.PSW |= pswBank
	p.Step() // CALL: stores PSW nibble (carry+bank) alongside return addr.

	// Clobber live PSW bits between call and return to prove restore works.
	p.setCarryBit(false)
	p.RB = 0
	p.PSW &^= pswBank

	p.Step() // RETR
	if p.PSW&pswCarry == 0 {
		t.Errorf("carry not restored by RETR")
	}
	if p.RB != 1 || p.PSW&pswBank == 0 {
		t.Errorf("bank select not restored by RETR: RB=%d PSW=0x%02X", p.RB, p.PSW)
	}
}

func TestPageLocalConditionalBranch(t *testing.T) {
	// CLR A; JZ 0x05 (forward to INC A) -- verify target address is
	// computed within the current page.
	prog := make([]uint8, 16)
	prog[0] = 0x27       // CLR A
	prog[1], prog[2] = 0xC6, 0x05 // JZ 0x05
	prog[5] = 0x17       // INC A (branch target)
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Step() // CLR A
	p.Step() // JZ taken
	if p.PC != 5 {
		t.Fatalf("PC = %d, want 5", p.PC)
	}
	p.Step()
	if p.ACC != 1 {
		t.Errorf("ACC = %d, want 1", p.ACC)
	}
}

func TestDJNZLoop(t *testing.T) {
	// MOV R0,#3; loop: DJNZ R0,loop
	prog := []uint8{0xB8, 0x03, 0xE8, 0x02}
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Step() // MOV R0,#3
	for i := 0; i < 3; i++ {
		p.Step()
	}
	if got := p.GetReg(0); got != 0 {
		t.Errorf("R0 = %d, want 0", got)
	}
	if p.PC != 4 {
		t.Errorf("PC = %d, want 4 (loop fell through)", p.PC)
	}
}

func TestUnknownOpcodeLogsAndContinues(t *testing.T) {
	var buf bytes.Buffer
	// 0x66 is not a defined MCS-48 opcode in this table.
	p, err := New([]uint8{0x66, 0x00}, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Logger = log.New(&buf, "", 0)
	p.Step()
	if p.PC != 1 {
		t.Errorf("PC = %d, want 1 (no rewind on unknown opcode)", p.PC)
	}
	if buf.Len() == 0 {
		t.Errorf("expected unknown-opcode message to be logged")
	}
}

func TestSetStateRejectsOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	p := assembleROM(t, 4, 0x00)
	p.Logger = log.New(&buf, "", 0)
	p.SetState("A", 999)
	if p.ACC != 0 {
		t.Errorf("ACC = %d, want unchanged 0", p.ACC)
	}
	if buf.Len() == 0 {
		t.Errorf("expected invalid-value message to be logged")
	}
	p.SetState("PC", 4) // == romSize, inclusive upper bound is allowed.
	if p.PC != 4 {
		t.Errorf("PC = %d, want 4", p.PC)
	}
}

func TestCallRejectsOutOfRangeTarget(t *testing.T) {
	// CALL 0x1FF with a 16-byte ROM: destination is out of range, so PC must
	// not move and the stack must not be pushed.
	prog := make([]uint8, 16)
	prog[0], prog[1] = 0x34, 0xFF // CALL with page bits 001 -> 0x1FF
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	p.Logger = log.New(&buf, "", 0)
	sp := p.PSW & pswSP
	p.Step()
	if p.PC != 2 {
		t.Errorf("PC = %d, want 2 (unchanged past the CALL instruction itself)", p.PC)
	}
	if got := p.PSW & pswSP; got != sp {
		t.Errorf("SP = %d, want unchanged %d (stack must not be pushed)", got, sp)
	}
	if buf.Len() == 0 {
		t.Errorf("expected invalid-destination message to be logged")
	}
}

func TestJmppReadsFromCurrentPage(t *testing.T) {
	// A one-byte JMPP at 0x105 (page 1) with ACC=0x10 must index the jump
	// table at 0x110, not at page 0's 0x010.
	prog := make([]uint8, 0x120)
	prog[0x105] = 0xB3  // JMPP @A
	prog[0x110] = 0x42  // table entry read back into PC's low byte
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.PC = 0x105
	p.ACC = 0x10
	p.Step()
	if p.PC != 0x142 {
		t.Errorf("PC = 0x%03X, want 0x142 (table read from page 1)", p.PC)
	}
}

func TestALUImmediateOpcodesTableDriven(t *testing.T) {
	tests := []struct {
		name       string
		prog       []uint8
		wantACC    uint8
		wantCarry  bool
	}{
		{"orl", []uint8{0x23, 0x0F, 0x43, 0xF0}, 0xFF, false},
		{"anl", []uint8{0x23, 0xFF, 0x53, 0x0F}, 0x0F, false},
		{"xrl", []uint8{0x23, 0xFF, 0xD3, 0x0F}, 0xF0, false},
		{"add_no_carry", []uint8{0x23, 0x01, 0x03, 0x01}, 0x02, false},
		{"add_sets_carry", []uint8{0x23, 0xFF, 0x03, 0x01}, 0x00, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.prog, len(tt.prog))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			p.Step()
			p.Step()
			if diff := deep.Equal(p.ACC, tt.wantACC); diff != nil {
				t.Errorf("ACC mismatch: %v\n%s", diff, spew.Sdump(p))
			}
			if got := p.PSW&pswCarry != 0; got != tt.wantCarry {
				t.Errorf("carry = %v, want %v", got, tt.wantCarry)
			}
		})
	}
}

func TestPortWriteNotifiesObserver(t *testing.T) {
	// MOV A,#0x5A ; OUTL P1,A
	prog := []uint8{0x23, 0x5A, 0x39}
	p, err := New(prog, len(prog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	obs := &capturingWriter{}
	p.SetPortWriter(obs)
	p.Step()
	p.Step()
	if len(obs.writes) != 1 {
		t.Fatalf("got %d port writes, want 1", len(obs.writes))
	}
	if diff := deep.Equal(obs.writes[0], portWrite{port: 1, val: 0x5A}); diff != nil {
		t.Errorf("unexpected port write: %v\n%s", diff, spew.Sdump(obs.writes))
	}
}

type portWrite struct {
	port int
	val  uint8
}

type capturingWriter struct {
	writes []portWrite
}

func (c *capturingWriter) Write(port int, val uint8) {
	c.writes = append(c.writes, portWrite{port: port, val: val})
}
