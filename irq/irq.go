// Package irq defines the basic interface for working with the MCS-48's
// external interrupt line. A generator of IRQ state implements this
// interface so the cpu package can sample it without depending on whatever
// raises it. Dispatch itself is out of scope (spec Non-goal): the cpu
// package only tracks the enable bits (EN I / DIS I, EN TCNTI / DIS TCNTI)
// and samples this line for JNI, it never vectors to an ISR.
package irq

// Sender defines the interface for an IRQ source.
type Sender interface {
	// Raised indicates whether the interrupt is currently held low
	// (active). The MCS-48 IRQ pin is active-low. When a Sender is installed
	// JNI uses Raised directly; without one, cpu.Chip falls back to its IRQ
	// field, which stores true = inactive as the hardware default.
	Raised() bool
}
