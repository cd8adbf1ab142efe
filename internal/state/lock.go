package state

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// lockFilePath returns the path to the lock file for a store directory.
func lockFilePath(storeDir string) string {
	return filepath.Join(storeDir, "lock")
}

// AcquireLock creates a lock file containing the current PID.
// Returns ErrStoreLocked if the store is already locked by a live process.
func AcquireLock(storeDir string) error {
	lockPath := lockFilePath(storeDir)

	// Check for existing lock
	if isLockedByOther(lockPath) {
		return ErrStoreLocked
	}

	// Write current PID
	pid := os.Getpid()
	return os.WriteFile(lockPath, []byte(strconv.Itoa(pid)), 0644)
}

// ReleaseLock removes the lock file. Best-effort: ignores ENOENT.
func ReleaseLock(storeDir string) error {
	err := os.Remove(lockFilePath(storeDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsLocked checks if a store directory is locked by another process.
// Auto-removes stale locks (dead PID).
func IsLocked(storeDir string) bool {
	return isLockedByOther(lockFilePath(storeDir))
}

// isLockedByOther checks the lock file and returns true if locked by a live
// process other than the current one. Removes stale locks.
func isLockedByOther(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false // No lock file or can't read it
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		// Corrupt lock file, remove it
		os.Remove(lockPath)
		return false
	}

	// Our own lock
	if pid == os.Getpid() {
		return false
	}

	// Check if process is alive
	if !isProcessAlive(pid) {
		// Stale lock, remove it
		os.Remove(lockPath)
		return false
	}

	return true
}

// isProcessAlive checks if a process with the given PID exists.
func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without actually sending a signal
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
