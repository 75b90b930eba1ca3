// Package io defines the basic interfaces for working with an MCS-48 based
// I/O port (P1/P2, the ADB device-input line). Implementors of I/O are
// expected to be side-effect free and idempotent within a single cycle,
// since the CPU and the ADB host may both sample a given port more than
// once while advancing the same cycle.
package io

// Port8 defines an 8 bit I/O port. The ADB host uses this to sample the
// port carrying the device-to-host data line. The cpu package does not take
// a Port8: firmware reads of P1/P2 return the chip's own latched values.
type Port8 interface {
	// Input returns the current value being presented on the port.
	Input() uint8
}

// PortWriter receives a notification whenever firmware writes to an output
// port (P1, P2, or BUS). Generalizes the source emulator's write_port
// method into an injectable observer so the cpu package need not know how
// (or whether) writes are logged or displayed.
type PortWriter interface {
	// Write is called with the port number (0 = BUS, 1 = P1, 2 = P2) and
	// the new value latched onto it.
	Write(port int, val uint8)
}
