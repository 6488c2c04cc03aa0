// Package gpio provides paddle lever reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the paddle lever.
type Reader interface {
	// Read returns true while the paddle is closed (brewing requested).
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPinPaddle is the BCM pin wired to the paddle microswitch.
const DefaultPinPaddle = 17
