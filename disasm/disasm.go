// Package disasm implements a disassembler for the Intel MCS-48 instruction
// set. It is pure and stateless aside from two formatting options; it never
// touches CPU state. Grounded on the teacher's disassemble package shape
// (a single Step function over two bytes) and on the opcode table in
// Apple/Simulator/dasm8048.py (original_source), which this package mirrors
// byte-for-byte including the instructions the cpu package doesn't execute
// (MOVD/ORLD/ANLD, the P4-P7 expander forms).
package disasm

import "fmt"

// Options controls the disassembly's textual formatting.
type Options struct {
	// Uppercase renders the mnemonic and operands in upper case.
	Uppercase bool
	// OpcodeWidth is the left-justified field width for the mnemonic
	// before the operand list.
	OpcodeWidth int
}

// DefaultOptions matches dasm8048.py's constructor defaults.
func DefaultOptions() Options {
	return Options{Uppercase: false, OpcodeWidth: 8}
}

// Disassembler formats MCS-48 instructions according to Options.
type Disassembler struct {
	opts Options
}

// New creates a Disassembler with the given formatting options.
func New(opts Options) *Disassembler {
	if opts.OpcodeWidth <= 0 {
		opts.OpcodeWidth = 8
	}
	return &Disassembler{opts: opts}
}

func (d *Disassembler) fmtInstr(opc, ops string) string {
	s := opc
	if ops != "" {
		s = ljust(opc, d.opts.OpcodeWidth) + ops
	}
	if d.opts.Uppercase {
		return upper(s)
	}
	return s
}

func ljust(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func fmtImm(n uint16) string {
	return fmt.Sprintf("#%03xh", n)
}

// Step disassembles the single instruction at pc given its opcode byte b0
// and the following byte b1 (read unconditionally; callers must ensure it
// is addressable even for one-byte instructions). It returns the formatted
// instruction text and its length in bytes (1 or 2). Unrecognized opcodes
// return ("unknown", 1).
func (d *Disassembler) Step(pc uint16, b0, b1 uint8) (string, int) {
	switch {
	case b0 == 0x00:
		return d.fmtInstr("nop", ""), 1
	case b0 == 0x02:
		return d.fmtInstr("outl", "bus,a"), 1
	case b0 == 0x03:
		return d.fmtInstr("add", "a,"+fmtImm(uint16(b1))), 2
	case (b0 & 0x1F) == 0x04:
		dest := (uint16(b0&0xE0) << 3) | uint16(b1)
		return d.fmtInstr("jmp", fmtImm(dest)), 2
	case b0 == 0x05:
		return d.fmtInstr("en", "i"), 1
	case b0 == 0x07:
		return d.fmtInstr("dec", "a"), 1
	case (b0 & 0xFC) == 0x08:
		switch b0 & 3 {
		case 0:
			return d.fmtInstr("ins", "a,bus"), 1
		case 1:
			return d.fmtInstr("in", "a,p1"), 1
		case 2:
			return d.fmtInstr("in", "a,p2"), 1
		}
	case (b0 & 0xFC) == 0x0C:
		return d.fmtInstr("movd", fmt.Sprintf("a,p%d", (b0&3)+4)), 1
	case (b0 & 0xFE) == 0x10:
		return d.fmtInstr("inc", fmt.Sprintf("@r%d", b0&1)), 1
	case (b0 & 0x1F) == 0x12:
		bitNum := (b0 >> 5) & 7
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr(fmt.Sprintf("jb%d", bitNum), fmtImm(dest)), 2
	case b0 == 0x13:
		return d.fmtInstr("addc", "a,"+fmtImm(uint16(b1))), 2
	case (b0 & 0x1F) == 0x14:
		dest := (uint16(b0&0xE0) << 3) | uint16(b1)
		return d.fmtInstr("call", fmtImm(dest)), 2
	case b0 == 0x15:
		return d.fmtInstr("dis", "i"), 1
	case b0 == 0x16:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jtf", fmtImm(dest)), 2
	case b0 == 0x17:
		return d.fmtInstr("inc", "a"), 1
	case (b0 & 0xF8) == 0x18:
		return d.fmtInstr("inc", fmt.Sprintf("r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x20:
		return d.fmtInstr("xch", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x23:
		return d.fmtInstr("mov", "a,"+fmtImm(uint16(b1))), 2
	case b0 == 0x25:
		return d.fmtInstr("en", "tcnti"), 1
	case b0 == 0x26:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jnt0", fmtImm(dest)), 2
	case b0 == 0x27:
		return d.fmtInstr("clr", "a"), 1
	case (b0 & 0xF8) == 0x28:
		return d.fmtInstr("xch", fmt.Sprintf("a,r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x30:
		return d.fmtInstr("xchd", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x35:
		return d.fmtInstr("dis", "tcnti"), 1
	case b0 == 0x36:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jt0", fmtImm(dest)), 2
	case b0 == 0x37:
		return d.fmtInstr("cpl", "a"), 1
	case (b0 & 0xFC) == 0x38:
		port := b0 & 3
		if port == 1 || port == 2 {
			return d.fmtInstr("outl", fmt.Sprintf("p%d,a", port)), 1
		}
	case (b0 & 0xFC) == 0x3C:
		return d.fmtInstr("movd", fmt.Sprintf("p%d,a", (b0&3)+4)), 1
	case (b0 & 0xFE) == 0x40:
		return d.fmtInstr("orl", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x42:
		return d.fmtInstr("mov", "a,t"), 1
	case b0 == 0x43:
		return d.fmtInstr("orl", "a,"+fmtImm(uint16(b1))), 2
	case b0 == 0x45:
		return d.fmtInstr("strt", "cnt"), 1
	case b0 == 0x46:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jnt1", fmtImm(dest)), 2
	case b0 == 0x47:
		return d.fmtInstr("swap", "a"), 1
	case (b0 & 0xF8) == 0x48:
		return d.fmtInstr("orl", fmt.Sprintf("a,r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x50:
		return d.fmtInstr("anl", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x53:
		return d.fmtInstr("anl", "a,"+fmtImm(uint16(b1))), 2
	case b0 == 0x55:
		return d.fmtInstr("strt", "t"), 1
	case b0 == 0x56:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jt1", fmtImm(dest)), 2
	case b0 == 0x57:
		return d.fmtInstr("da", "a"), 1
	case (b0 & 0xF8) == 0x58:
		return d.fmtInstr("anl", fmt.Sprintf("a,r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x60:
		return d.fmtInstr("add", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x62:
		return d.fmtInstr("mov", "t,a"), 1
	case b0 == 0x65:
		return d.fmtInstr("stop", "tcnt"), 1
	case b0 == 0x67:
		return d.fmtInstr("rrc", "a"), 1
	case (b0 & 0xF8) == 0x68:
		return d.fmtInstr("add", fmt.Sprintf("a,r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x70:
		return d.fmtInstr("addc", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x75:
		return d.fmtInstr("ent0", "clk"), 1
	case b0 == 0x76:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jf1", fmtImm(dest)), 2
	case b0 == 0x77:
		return d.fmtInstr("rr", "a"), 1
	case (b0 & 0xF8) == 0x78:
		return d.fmtInstr("addc", fmt.Sprintf("a,r%d", b0&7)), 1
	case (b0 & 0xFE) == 0x80:
		return d.fmtInstr("movx", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0x83:
		return d.fmtInstr("ret", ""), 1
	case b0 == 0x85:
		return d.fmtInstr("clr", "f0"), 1
	case b0 == 0x86:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jni", fmtImm(dest)), 2
	case (b0 & 0xFC) == 0x88:
		port := b0 & 3
		if port == 0 {
			return d.fmtInstr("orl", "bus,"+fmtImm(uint16(b1))), 2
		}
		if port == 1 || port == 2 {
			return d.fmtInstr("orl", fmt.Sprintf("p%d,%s", port, fmtImm(uint16(b1)))), 2
		}
	case (b0 & 0xFC) == 0x8C:
		return d.fmtInstr("orld", fmt.Sprintf("p%d,a", (b0&3)+4)), 1
	case (b0 & 0xFE) == 0x90:
		return d.fmtInstr("movx", fmt.Sprintf("@r%d,a", b0&1)), 1
	case b0 == 0x93:
		return d.fmtInstr("retr", ""), 1
	case b0 == 0x95:
		return d.fmtInstr("cpl", "f0"), 1
	case b0 == 0x96:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jnz", fmtImm(dest)), 2
	case b0 == 0x97:
		return d.fmtInstr("clr", "c"), 1
	case (b0 & 0xFC) == 0x98:
		port := b0 & 3
		if port == 0 {
			return d.fmtInstr("anl", "bus,"+fmtImm(uint16(b1))), 2
		}
		if port == 1 || port == 2 {
			return d.fmtInstr("anl", fmt.Sprintf("p%d,%s", port, fmtImm(uint16(b1)))), 2
		}
	case (b0 & 0xFC) == 0x9C:
		return d.fmtInstr("anld", fmt.Sprintf("p%d,a", (b0&3)+4)), 1
	case (b0 & 0xFE) == 0xA0:
		return d.fmtInstr("mov", fmt.Sprintf("@r%d,a", b0&1)), 1
	case b0 == 0xA3:
		return d.fmtInstr("movp", "a,@a"), 1
	case b0 == 0xA5:
		return d.fmtInstr("clr", "f1"), 1
	case b0 == 0xA7:
		return d.fmtInstr("cpl", "c"), 1
	case (b0 & 0xF8) == 0xA8:
		return d.fmtInstr("mov", fmt.Sprintf("r%d,a", b0&7)), 1
	case (b0 & 0xFE) == 0xB0:
		return d.fmtInstr("mov", fmt.Sprintf("@r%d,%s", b0&1, fmtImm(uint16(b1)))), 2
	case b0 == 0xB3:
		return d.fmtInstr("jmpp", "@a"), 1
	case b0 == 0xB5:
		return d.fmtInstr("cpl", "f1"), 1
	case b0 == 0xB6:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jf0", fmtImm(dest)), 2
	case (b0 & 0xF8) == 0xB8:
		return d.fmtInstr("mov", fmt.Sprintf("r%d,%s", b0&7, fmtImm(uint16(b1)))), 2
	case b0 == 0xC5:
		return d.fmtInstr("sel", "rb0"), 1
	case b0 == 0xC6:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jz", fmtImm(dest)), 2
	case b0 == 0xC7:
		return d.fmtInstr("mov", "a,psw"), 1
	case (b0 & 0xF8) == 0xC8:
		return d.fmtInstr("dec", fmt.Sprintf("r%d", b0&7)), 1
	case (b0 & 0xFE) == 0xD0:
		return d.fmtInstr("xrl", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0xD3:
		return d.fmtInstr("xrl", "a,"+fmtImm(uint16(b1))), 2
	case b0 == 0xD5:
		return d.fmtInstr("sel", "rb1"), 1
	case b0 == 0xD7:
		return d.fmtInstr("mov", "psw,a"), 1
	case (b0 & 0xF8) == 0xD8:
		return d.fmtInstr("xrl", fmt.Sprintf("a,r%d", b0&7)), 1
	case b0 == 0xE3:
		return d.fmtInstr("movp3", "a,@a"), 1
	case b0 == 0xE5:
		return d.fmtInstr("sel", "mb0"), 1
	case b0 == 0xE6:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jnc", fmtImm(dest)), 2
	case b0 == 0xE7:
		return d.fmtInstr("rl", "a"), 1
	case b0 == 0xF5:
		return d.fmtInstr("sel", "mb1"), 1
	case b0 == 0xF7:
		return d.fmtInstr("rlc", "a"), 1
	case (b0 & 0xF8) == 0xE8:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("djnz", fmt.Sprintf("r%d,%s", b0&7, fmtImm(dest))), 2
	case (b0 & 0xFE) == 0xF0:
		return d.fmtInstr("mov", fmt.Sprintf("a,@r%d", b0&1)), 1
	case b0 == 0xF6:
		dest := (pc &^ 0xFF) | uint16(b1)
		return d.fmtInstr("jc", fmtImm(dest)), 2
	case (b0 & 0xF8) == 0xF8:
		return d.fmtInstr("mov", fmt.Sprintf("a,r%d", b0&7)), 1
	}
	return "unknown", 1
}
