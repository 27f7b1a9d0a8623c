//go:build linux

package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// applyMemoryCeiling caps this process's address space at its current
// VmSize plus headroom. Measured fresh on every invocation, after the
// request is decoded, so the ceiling tracks the dataset actually loaded.
func applyMemoryCeiling(headroomMB int) error {
	if headroomMB <= 0 {
		headroomMB = DefaultHeadroomMB
	}
	baseline, err := currentVmSizeBytes()
	if err != nil {
		return err
	}
	limit := baseline + uint64(headroomMB)*1024*1024
	rl := unix.Rlimit{Cur: limit, Max: limit}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return fmt.Errorf("setrlimit RLIMIT_AS: %w", err)
	}
	return nil
}

// currentVmSizeBytes reads the VmSize line from /proc/self/status.
func currentVmSizeBytes() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, fmt.Errorf("open /proc/self/status: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmSize:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, parseErr := strconv.ParseUint(fields[1], 10, 64)
		if parseErr != nil {
			return 0, fmt.Errorf("parse VmSize %q: %w", fields[1], parseErr)
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read /proc/self/status: %w", err)
	}
	return 0, fmt.Errorf("VmSize not present in /proc/self/status")
}
