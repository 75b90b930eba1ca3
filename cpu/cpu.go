// Package cpu implements the MCS-48 (8048/8049) instruction set interpreter:
// register banks, a shadow stack in RAM, a program status word with an
// embedded stack pointer, bit-bangable I/O ports, and the T0/T1 test
// inputs. It is cycle-approximate — one machine cycle is modeled as one
// increment of the Cycles counter per opcode (two for the handful of
// opcodes that cost an extra cycle), matching the real part's 2.5us
// machine cycle at the granularity this emulator cares about.
//
// Grounded on the teacher's cpu.Chip (github.com/jmchacon/6502/cpu):
// typed error values, an injectable write-port observer, and a split between
// construction (New) and Reset. The opcode semantics themselves are grounded on
// Apple/Simulator/emu8048.py (original_source), generalized from its long
// if/elif chain into a precomputed 256-entry dispatch table per the
// "Opcode dispatch" design note, and extended with the handful of opcodes
// (EN I, ADDC A,#i/Rn/@Rn, ANL A,@Rn, MOV A,PSW, MOVP A,@A, SEL MB1, MOVX
// A,@Rn) that emu8048.py's executor omitted but spec.md requires and
// dasm8048.py already disassembles.
package cpu

import (
	"fmt"
	"log"
	"os"

	pio "github.com/adbsim/mcs48kbd/io"
	"github.com/adbsim/mcs48kbd/irq"
	"github.com/adbsim/mcs48kbd/memory"
)

// PSW bit masks.
const (
	pswCarry   = uint8(0x80)
	pswBank    = uint8(0x10)
	pswReserve = uint8(0x08)
	pswSP      = uint8(0x07)
)

const defaultRAMSize = 128

// ADBTicker is the minimal interface the CPU needs from an installed ADB
// host state machine: a single advance-by-at-most-one-transition call,
// stamped with the current cycle count. Declared here (rather than
// importing adbhost) so the two packages only share the small T1Line
// contract that adbhost defines against this package's Chip.
type ADBTicker interface {
	Tick(cycles uint64)
}

// InvalidState reports a construction-time problem that is a genuine
// programming error rather than a logged runtime condition.
type InvalidState struct {
	Reason string
}

func (e InvalidState) Error() string {
	return fmt.Sprintf("invalid cpu state: %s", e.Reason)
}

// Chip holds all directly observable MCS-48 CPU state (spec.md §3).
type Chip struct {
	PC  uint16
	ACC uint8
	PSW uint8
	RB  int
	MB  int

	F0, F1   bool
	T        uint8
	TIE, EIE bool
	IRQ      bool // true = inactive, matches hardware default.
	BUS      uint8
	P1, P2   uint8
	T0, T1   bool
	Cycles   uint64
	romSize  int

	rom memory.Bank
	ram memory.Bank

	portWriter pio.PortWriter
	adb        ADBTicker
	irqSrc     irq.Sender

	// PostStep, if non-nil, is invoked after every Step() call (after the
	// post-instruction ADB tick), for tracing/debugging use.
	PostStep func(*Chip)

	Logger *log.Logger
}

// New constructs a Chip with the given ROM image, a freshly zeroed 128-byte
// RAM, and powers it on (Reset). size is authoritative for PC-bounds
// checks; data is copied into a buffer of exactly size bytes (zero-padded
// or truncated as needed).
func New(data []byte, size int) (*Chip, error) {
	ram, err := memory.NewRAM(defaultRAMSize)
	if err != nil {
		return nil, err
	}
	p := &Chip{
		ram:    ram,
		Logger: log.New(os.Stderr, "", 0),
	}
	if err := p.LoadROM(data, size); err != nil {
		return nil, err
	}
	p.Reset()
	// init_io(): T0/T1 start pulled high (idle). Reset() does not touch
	// these, matching the source's separation of reset() from init_io().
	p.T0 = true
	p.T1 = true
	return p, nil
}

// LoadROM installs a new ROM image. size is authoritative for PC-bounds
// checks; data is copied (truncated or zero-padded) into a buffer of
// exactly size bytes.
func (p *Chip) LoadROM(data []byte, size int) error {
	if size <= 0 {
		return InvalidState{Reason: fmt.Sprintf("rom size must be positive, got %d", size)}
	}
	buf := make([]byte, size)
	copy(buf, data)
	rom, err := memory.NewROM(buf)
	if err != nil {
		return err
	}
	p.rom = rom
	p.romSize = size
	return nil
}

// Reset restores power-on CPU state. RAM is left untouched: it is only
// zeroed once, at construction.
func (p *Chip) Reset() {
	p.PC = 0
	p.PSW = pswReserve
	p.RB = 0
	p.MB = 0
	p.ACC = 0
	p.BUS = 0xFF
	p.F0 = false
	p.F1 = false
	p.TIE = false
	p.EIE = false
	p.IRQ = true
	p.Cycles = 0
	p.P1 = 0x00
	p.P2 = 0xFF
	p.T = 0
}

// SetPortWriter installs an observer notified whenever firmware writes to
// BUS (port 0), P1, or P2.
func (p *Chip) SetPortWriter(w pio.PortWriter) {
	p.portWriter = w
}

// SetADB installs the ADB host state machine to be ticked from JT1/JNT1 and
// after every instruction.
func (p *Chip) SetADB(t ADBTicker) {
	p.adb = t
}

// SetIRQSource installs an external interrupt sampled by JNI.
func (p *Chip) SetIRQSource(s irq.Sender) {
	p.irqSrc = s
}

// GetT1 implements adbhost.T1Line.
func (p *Chip) GetT1() bool { return p.T1 }

// SetT1 implements adbhost.T1Line.
func (p *Chip) SetT1(v bool) { p.T1 = v }

func (p *Chip) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

func (p *Chip) tickADB() {
	if p.adb != nil {
		p.adb.Tick(p.Cycles)
	}
}

// Step fetches, decodes, and executes one instruction at PC, advances PC
// and Cycles, ticks the ADB host (if installed) once post-instruction, and
// finally invokes PostStep if installed. Unknown opcodes are logged and
// execution continues at the byte after the opcode; nothing here ever
// aborts the process.
func (p *Chip) Step() {
	op := p.rom.Read(p.PC)
	p.PC++
	p.Cycles++
	opcodeTable[op](p, op)
	p.tickADB()
	if p.PostStep != nil {
		p.PostStep(p)
	}
}

// RunUntil repeatedly steps until PC equals addr. Not cancellable:
// equivalence of PC to addr is the sole termination condition.
func (p *Chip) RunUntil(addr uint16) {
	for p.PC != addr {
		p.Step()
	}
}

// GetPC returns the current program counter.
func (p *Chip) GetPC() uint16 { return p.PC }

// PeekROM returns the ROM byte at addr without affecting PC or Cycles, for
// use by external disassembly callers (e.g. the REPL's dasm command).
func (p *Chip) PeekROM(addr uint16) uint8 {
	return p.rom.Read(addr)
}

// GetReg returns register r (0..7) in the currently selected bank.
func (p *Chip) GetReg(r uint8) uint8 {
	return p.ram.Read(p.regAddr(r))
}

// SetReg writes register r (0..7) in the currently selected bank.
func (p *Chip) SetReg(r, val uint8) {
	p.ram.Write(p.regAddr(r), val)
}

func (p *Chip) regAddr(r uint8) uint16 {
	return uint16(p.RB)*24 + uint16(r&7)
}

// SetState mutates PC, A, T0, T1, or R0..R7 in the active bank, rejecting
// out-of-range values (logged, no state change).
func (p *Chip) SetState(name string, val int) {
	switch name {
	case "PC":
		if val < 0 || val > p.romSize {
			p.logf("Invalid value 0x%04X", val)
			return
		}
		p.PC = uint16(val)
	case "A":
		if val < 0 || val > 0xFF {
			p.logf("Invalid value 0x%04X", val)
			return
		}
		p.ACC = uint8(val)
	case "T0":
		p.T0 = val&1 != 0
	case "T1":
		p.T1 = val&1 != 0
	default:
		if n, ok := regIndex(name); ok {
			if val < 0 || val > 0xFF {
				p.logf("Invalid value 0x%04X", val)
				return
			}
			p.SetReg(uint8(n), uint8(val))
			return
		}
		p.logf("Unknown destination %s", name)
	}
}

// regIndex parses "R0".."R7" into 0..7.
func regIndex(name string) (int, bool) {
	if len(name) != 2 || name[0] != 'R' {
		return 0, false
	}
	if name[1] < '0' || name[1] > '7' {
		return 0, false
	}
	return int(name[1] - '0'), true
}

// PrintState writes a human-readable dump of registers/flags, in the same
// shape as the source's print_state().
func (p *Chip) PrintState(w writer) {
	fmt.Fprintln(w, "Register bank 0:")
	for i := uint16(0); i < 8; i++ {
		fmt.Fprintf(w, "r%d: 0x%02X\n", i, p.ram.Read(i))
	}
	fmt.Fprintln(w, "Register bank 1:")
	for i := uint16(0); i < 8; i++ {
		fmt.Fprintf(w, "r%d: 0x%02X\n", i, p.ram.Read(i+24))
	}
	fmt.Fprintf(w, "PC : 0x%03X\n", p.PC)
	fmt.Fprintf(w, "ACC: 0x%02X\n", p.ACC)
	fmt.Fprintf(w, "PSW: 0x%02X\n", p.PSW)
	fmt.Fprintf(w, "Reg bank: %d\n", p.RB)
	fmt.Fprintf(w, "Mem bank: %d\n", p.MB)
	fmt.Fprintf(w, "F0: %v F1: %v\n", p.F0, p.F1)
	fmt.Fprintf(w, "T: 0x%02X TIE: %v EIE: %v\n", p.T, p.TIE, p.EIE)
	fmt.Fprintf(w, "BUS: 0x%02X P1: 0x%02X P2: 0x%02X\n", p.BUS, p.P1, p.P2)
	fmt.Fprintf(w, "T0: %v T1: %v\n", p.T0, p.T1)
	fmt.Fprintf(w, "Cycles: %d\n", p.Cycles)
}

// DumpRAM writes all 128 bytes of RAM as 8 rows of 16, in the same shape as
// the source's dump_ram().
func (p *Chip) DumpRAM(w writer) {
	for row := 0; row < 8; row++ {
		fmt.Fprintf(w, "%04X  ", row*16)
		for col := 0; col < 16; col++ {
			fmt.Fprintf(w, "%02X ", p.ram.Read(uint16(row*16+col)))
		}
		fmt.Fprintln(w)
	}
}

// writer is the minimal fmt.Fprint* target. Declared locally (rather than
// importing the standard library's io package under its natural name) to
// avoid a name collision with this module's own io package, which this
// file already imports as pio.
type writer interface {
	Write(p []byte) (n int, err error)
}
