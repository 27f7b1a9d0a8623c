//go:build !linux

package sandbox

// applyMemoryCeiling is a no-op off Linux. The parent's kill-on-timeout
// still bounds the worker's lifetime.
func applyMemoryCeiling(int) error { return nil }
