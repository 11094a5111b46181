package launch

import (
	"fmt"
	"strconv"
)

// A process termination status in the POSIX range 0-255.
type ExitCode int

// Exit code base used for processes terminated by a signal.
const signalBase ExitCode = 128

// Returns true if the code indicates success.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// Returns an error if the code is outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return fmt.Errorf("%w: %d (must be in range 0-255)", ErrInvalidExitCode, int(c))
	}
	return nil
}

// Returns the decimal representation.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Returns the conventional exit code for a process killed by signal sig.
func FromSignal(sig int) ExitCode { return signalBase + ExitCode(sig) }
