/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// humanReadableSize formats a byte count with decimal (SI) units.
func humanReadableSize(bytes int) string {
	const unit = 1000

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes)
	suffix := 0
	for value >= unit && suffix < len("kMGTPE") {
		value /= unit
		suffix++
	}

	return fmt.Sprintf("%.1f %cB", value, "kMGTPE"[suffix-1])
}
