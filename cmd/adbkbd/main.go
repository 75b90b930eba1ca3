// Command adbkbd is an interactive REPL driving the MCS-48 ADB keyboard
// controller emulator: load a firmware ROM, single-step or run to an
// address, inspect registers/RAM, disassemble, and inject ADB commands.
//
// Grounded on AK_sim.py's `while cmd != "quit":` command loop
// (original_source), rebuilt around cobra.Command the way
// github.com/oisee/z80-optimizer's cmd/z80opt/main.go structures its root
// command and flags.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adbsim/mcs48kbd/adbhost"
	"github.com/adbsim/mcs48kbd/cpu"
	"github.com/adbsim/mcs48kbd/disasm"
)

func main() {
	var romPath string
	var startPC int
	var uppercase bool
	var opcodeWidth int

	root := &cobra.Command{
		Use:   "adbkbd",
		Short: "Interactive MCS-48 ADB keyboard controller emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if romPath == "" {
				return fmt.Errorf("--rom_path is required")
			}
			data, err := os.ReadFile(romPath)
			if err != nil {
				return fmt.Errorf("reading rom: %w", err)
			}
			chip, err := cpu.New(data, len(data))
			if err != nil {
				return fmt.Errorf("constructing cpu: %w", err)
			}
			chip.SetState("PC", startPC)

			host := adbhost.New(chip)
			chip.SetADB(host)

			d := disasm.New(disasm.Options{Uppercase: uppercase, OpcodeWidth: opcodeWidth})

			return runREPL(chip, host, d, os.Stdin, os.Stdout)
		},
	}

	root.Flags().StringVar(&romPath, "rom_path", "", "Path to the ROM image to load (required)")
	root.Flags().IntVar(&startPC, "start_pc", 0, "Initial program counter")
	root.Flags().BoolVar(&uppercase, "uppercase", false, "Render disassembly in upper case")
	root.Flags().IntVar(&opcodeWidth, "opcode_width", 8, "Left-justified mnemonic field width for disassembly")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const helpText = `Commands:
  step, si            execute one instruction
  until ADDR          run until PC == ADDR
  regs                print CPU registers and flags
  dump                print all RAM
  dasm                disassemble the instruction at the current PC
  dasm A N            disassemble N instructions starting at address A
  set X=Y             set_state(X, Y); X in {PC,A,T0,T1,R0..R7}
  adb_send X          arm the ADB host with command byte X
  help                print this summary
  quit                exit
`

// runREPL implements the line-oriented command loop, mirroring AK_sim.py's
// while cmd != "quit" loop: empty input repeats the previous command, and
// numeric arguments accept any base strconv.ParseInt recognizes with base 0
// (0x/0o/0b-prefixed or decimal).
func runREPL(chip *cpu.Chip, host *adbhost.Host, d *disasm.Disassembler, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	last := ""
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			line = last
		}
		last = line
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName := fields[0]
		switch cmdName {
		case "quit":
			return nil
		case "help":
			fmt.Fprint(out, helpText)
		case "step", "si":
			chip.Step()
		case "until":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: until ADDR")
				continue
			}
			addr, err := strconv.ParseInt(fields[1], 0, 64)
			if err != nil {
				fmt.Fprintln(out, "invalid address:", err)
				continue
			}
			chip.RunUntil(uint16(addr))
		case "regs":
			chip.PrintState(out)
		case "dump":
			chip.DumpRAM(out)
		case "dasm":
			runDasm(chip, d, out, fields)
		case "set":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: set X=Y")
				continue
			}
			runSet(chip, out, strings.Join(fields[1:], ""))
		case "adb_send":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: adb_send X")
				continue
			}
			v, err := strconv.ParseInt(fields[1], 0, 64)
			if err != nil {
				fmt.Fprintln(out, "invalid command byte:", err)
				continue
			}
			host.Send(uint8(v))
		default:
			fmt.Fprintf(out, "unknown command %q; try 'help'\n", cmdName)
		}
	}
}

func runDasm(chip *cpu.Chip, d *disasm.Disassembler, out *os.File, fields []string) {
	if len(fields) == 1 {
		pc := chip.GetPC()
		text, _ := d.Step(pc, romByte(chip, pc), romByte(chip, pc+1))
		fmt.Fprintf(out, "%04X  %s\n", pc, text)
		return
	}
	if len(fields) < 3 {
		fmt.Fprintln(out, "usage: dasm A N")
		return
	}
	addr, err := strconv.ParseInt(fields[1], 0, 64)
	if err != nil {
		fmt.Fprintln(out, "invalid address:", err)
		return
	}
	n, err := strconv.ParseInt(fields[2], 0, 64)
	if err != nil {
		fmt.Fprintln(out, "invalid count:", err)
		return
	}
	pc := uint16(addr)
	for i := int64(0); i < n; i++ {
		text, length := d.Step(pc, romByte(chip, pc), romByte(chip, pc+1))
		fmt.Fprintf(out, "%04X  %s\n", pc, text)
		pc += uint16(length)
	}
}

// romByte is a small shim so the REPL can peek at ROM bytes for
// disassembly without cpu.Chip exposing raw memory access beyond what
// spec's external interface already grants via dasm.
func romByte(chip *cpu.Chip, addr uint16) uint8 {
	return chip.PeekROM(addr)
}

func runSet(chip *cpu.Chip, out *os.File, assignment string) {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		fmt.Fprintln(out, "usage: set X=Y")
		return
	}
	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	val, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 0, 64)
	if err != nil {
		fmt.Fprintln(out, "invalid value:", err)
		return
	}
	chip.SetState(name, int(val))
}
