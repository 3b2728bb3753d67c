package hwclock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// clockSynced asks the kernel whether NTP considers the clock synchronised.
func clockSynced() (bool, error) {
	var tx unix.Timex
	if _, err := unix.Adjtimex(&tx); err != nil {
		return false, fmt.Errorf("adjtimex: %w", err)
	}
	return tx.Status&unix.STA_UNSYNC == 0, nil
}
