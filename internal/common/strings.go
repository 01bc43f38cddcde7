package common

import "strings"

const bytesPerMB = 1 << 20

// Normalize lowercases s and strips surrounding whitespace. Config keys such as log
// levels and component names are compared in this form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BytesToMB converts a byte count to whole megabytes, rounding down.
func BytesToMB(n uint64) uint64 {
	return n / bytesPerMB
}
