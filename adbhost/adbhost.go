// Package adbhost implements the Apple Desktop Bus host-side protocol state
// machine: the Attention/Sync/command/Stop/Tlt/data phases a real ADB host
// controller chip would drive over a single wire. It owns no notion of the
// 8048/8049 CPU executing firmware; it only needs a single shared bit (T1)
// and a callback to sample device-driven data, both described by the small
// interfaces below. Timing is expressed entirely in CPU cycles (1 cycle ≈
// 2.5 µs), matching the granularity at which the CPU core counts them.
//
// Grounded on Apple/Simulator/ADB.py (original_source), generalized from a
// numeric state machine into an exhaustive Go enum per the "FSM as tagged
// sum" design note.
package adbhost

import (
	"log"
	"os"

	"github.com/adbsim/mcs48kbd/io"
)

// adbState enumerates the phases of an ADB host transaction.
type adbState int

const (
	Idle adbState = iota
	Start
	Attention
	Sync
	SendCmd
	Stop
	Tlt
	DataInit
	WaitStart
	RxBit
	CheckStart
	RxData
	RxStop
)

func (s adbState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Start:
		return "Start"
	case Attention:
		return "Attention"
	case Sync:
		return "Sync"
	case SendCmd:
		return "SendCmd"
	case Stop:
		return "Stop"
	case Tlt:
		return "Tlt"
	case DataInit:
		return "DataInit"
	case WaitStart:
		return "WaitStart"
	case RxBit:
		return "RxBit"
	case CheckStart:
		return "CheckStart"
	case RxData:
		return "RxData"
	case RxStop:
		return "RxStop"
	default:
		return "Unknown"
	}
}

// T1Line is the minimal interface the host needs to drive/sample the ADB
// data line. cpu.Chip implements this structurally so this package never
// imports cpu (spec §5/§9: T1 is a single cell owned by the CPU, the FSM
// only borrows a mutable handle for the duration of a tick).
type T1Line interface {
	GetT1() bool
	SetT1(bool)
}

// Timing constants, all in cycles (1 cycle ≈ 2.5 µs). Named after the
// nominal phase duration each guards, per spec.md §4.3.
const (
	attentionCycles  = 320 // ≈800us
	syncCycles       = 28  // ≈70us
	cellCycles       = 40  // 100us/cell
	bitOneHighAt     = 14  // ≈35us
	bitZeroHighAt    = 26  // ≈65us
	stopCycles       = 28  // ≈70us
	tltCycles        = 58  // ≈145us
	waitStartTimeout = 46  // ≈115us
	rxHighMin        = 15  // ≈37.5us
	rxCellTimeout    = 52  // ≈130us
)

// Host is the ADB host protocol state machine.
type Host struct {
	t1 T1Line
	in io.Port8

	inMask uint8

	state, nextState adbState
	cycleMark        uint64

	cmd uint8
	bit int

	bitPos  int
	byteVal uint8
	phase   int

	lowTime, highTime uint64

	data []byte

	srqCount int

	Logger *log.Logger
}

// New creates an ADB host state machine bound to t1 (the shared ADB data
// line). No device-input callback is installed until SetInput is called;
// until then the sampled device bit reads as 0. The line starts pulled high
// (idle), matching the constructor in ADB.py.
func New(t1 T1Line) *Host {
	h := &Host{
		t1:     t1,
		inMask: 0x80,
		state:  Idle,
		Logger: log.New(os.Stderr, "", 0),
	}
	h.t1.SetT1(true)
	return h
}

// SetInput installs the device-to-host sampling callback and the bit mask
// used to extract a single data bit from its return value.
func (h *Host) SetInput(in io.Port8, mask uint8) {
	h.in = in
	h.inMask = mask
}

// Send arms the FSM with an 8-bit ADB command byte, clearing any previously
// received payload and starting the Attention phase on the next Tick.
func (h *Host) Send(cmd uint8) {
	h.cmd = cmd
	h.data = nil
	h.state = Start
}

// State returns the current FSM state, mostly useful for tests and REPL
// status printing.
func (h *Host) State() adbState { return h.state }

// Data returns the bytes received from the device so far during the
// current (or most recently completed) transaction.
func (h *Host) Data() []byte { return h.data }

// ServiceRequests returns how many times the device held the bus low during
// Tlt (a Service Request), across the lifetime of this Host.
func (h *Host) ServiceRequests() int { return h.srqCount }

func (h *Host) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func (h *Host) readDeviceBit() bool {
	if h.in == nil {
		return false
	}
	return h.in.Input()&h.inMask != 0
}

// startRxBit arms a fresh device-to-host bit-cell read, to be finalized
// into next once the cell completes.
func (h *Host) startRxBit(next adbState) {
	h.state = RxBit
	h.nextState = next
	h.phase = 0
	h.lowTime = 0
	h.highTime = 0
}

// Tick advances the FSM by at most one state transition, given the current
// CPU cycle count. It must be called both from JT1/JNT1 opcode execution
// and after every instruction (spec §4.3's ticking policy).
func (h *Host) Tick(cycles uint64) {
	switch h.state {
	case Idle:
		// Nothing armed; do nothing until Send is called.

	case Start:
		h.logf("ADB transaction start")
		h.cycleMark = cycles
		h.t1.SetT1(false)
		h.state = Attention

	case Attention:
		if cycles-h.cycleMark >= attentionCycles {
			h.logf("ADB attention ended")
			h.cycleMark = cycles
			h.t1.SetT1(true)
			h.state = Sync
		}

	case Sync:
		if cycles-h.cycleMark >= syncCycles {
			h.logf("ADB Sync ended")
			h.bit = 7
			h.cycleMark = cycles
			h.t1.SetT1(false)
			h.state = SendCmd
		}

	case SendCmd:
		if h.bit < 0 {
			h.logf("ADB command byte already completed")
			h.state = Idle
			break
		}
		elapsed := cycles - h.cycleMark
		if elapsed < cellCycles {
			if h.cmd&(1<<uint(h.bit)) != 0 {
				if elapsed >= bitOneHighAt {
					h.t1.SetT1(true)
				}
			} else {
				if elapsed >= bitZeroHighAt {
					h.t1.SetT1(true)
				}
			}
		} else {
			h.logf("Sending next ADB bit")
			h.t1.SetT1(false)
			h.bit--
			if h.bit < 0 {
				h.logf("Sending ADB byte completed, sending STOP bit")
				h.state = Stop
			}
			h.cycleMark = cycles
		}

	case Stop:
		if cycles-h.cycleMark >= stopCycles {
			h.t1.SetT1(true)
			h.logf("ADB stop bit completed")
			h.cycleMark = cycles
			h.state = Tlt
		}

	case Tlt:
		if !h.t1.GetT1() {
			h.logf("ADB: looks like we got a SRQ!")
			h.srqCount++
		} else if cycles-h.cycleMark >= tltCycles {
			h.logf("ADB: Tlt completed")
			h.state = DataInit
			h.cycleMark = cycles
		}

	case DataInit:
		switch h.cmd & 0xC {
		case 0xC: // Talk
			h.state = WaitStart
			h.cycleMark = cycles
			h.logf("ADB Talk started")
		case 0x8: // Listen
			h.logf("ADB Listen not supported yet")
			h.state = Idle
		default:
			h.logf("Unsupported ADB command 0x%X", h.cmd)
			h.state = Idle
		}

	case WaitStart:
		h.t1.SetT1(!h.readDeviceBit())
		if h.t1.GetT1() {
			if cycles-h.cycleMark >= waitStartTimeout {
				h.logf("ADB Tlt timeout reached")
				h.state = Idle
			}
		} else {
			h.logf("Checking ADB start bit")
			h.cycleMark = cycles
			h.startRxBit(CheckStart)
		}

	case RxBit:
		h.t1.SetT1(!h.readDeviceBit())
		elapsed := cycles - h.cycleMark
		if !h.t1.GetT1() { // line is low
			if h.phase == 1 { // high-to-low: cell complete
				if elapsed < rxHighMin {
					h.logf("ADB timing error, high-to-low too short!")
					h.state = Idle
				} else {
					h.highTime = elapsed - h.lowTime
					if h.lowTime > 14 {
						h.bit = 0
					} else {
						h.bit = 1
					}
					h.logf("Got %d bit from ADB device (low=%d high=%d)", h.bit, h.lowTime, h.highTime)
					h.state = h.nextState
					h.cycleMark = cycles
				}
			} else {
				if elapsed > rxCellTimeout {
					h.logf("ADB bit cell timeout (low phase)")
					h.state = Idle
				} else {
					h.lowTime = elapsed
				}
			}
		} else { // line is high
			if h.phase == 0 {
				h.lowTime = elapsed
				h.logf("ADB line changed from low to high")
			}
			h.phase = 1
			h.highTime = elapsed - h.lowTime
			if elapsed > rxCellTimeout {
				h.logf("ADB bit cell timeout (high phase)")
				h.state = Idle
			}
		}

	case CheckStart:
		if h.bit == 0 {
			h.logf("Invalid ADB start bit. Aborting...")
			h.state = Idle
		} else {
			h.bitPos = 0
			h.byteVal = 0
			h.startRxBit(RxData)
		}

	case RxData:
		if h.bitPos < 7 {
			h.byteVal = (h.byteVal << 1) | uint8(h.bit)
			h.bitPos++
			h.startRxBit(RxData)
		} else {
			h.byteVal = (h.byteVal << 1) | uint8(h.bit)
			h.logf("Got ADB byte 0x%02X from device", h.byteVal)
			h.data = append(h.data, h.byteVal)
			if len(h.data) < 2 {
				h.bitPos = 0
				h.byteVal = 0
				h.startRxBit(RxData)
			} else {
				h.cycleMark = cycles
				h.startRxBit(RxStop)
			}
		}

	case RxStop:
		if h.bit == 1 {
			h.logf("Received ADB stop bit. Stopping...")
		} else {
			h.logf("Invalid ADB stop bit. Stopping...")
		}
		h.state = Idle
	}
}
