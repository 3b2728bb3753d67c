//go:build !linux

package hwclock

import "errors"

func clockSynced() (bool, error) {
	return false, errors.New("clock sync check requires Linux")
}
