package state

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestLock(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		dir := t.TempDir()
		if err := AcquireLock(dir); err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		// Our own lock does not count as locked.
		if IsLocked(dir) {
			t.Error("IsLocked = true for our own lock")
		}
		if err := ReleaseLock(dir); err != nil {
			t.Fatalf("ReleaseLock: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "lock")); !os.IsNotExist(err) {
			t.Error("lock file still present after release")
		}
	})

	t.Run("release without lock", func(t *testing.T) {
		if err := ReleaseLock(t.TempDir()); err != nil {
			t.Errorf("ReleaseLock on unlocked dir: %v", err)
		}
	})

	t.Run("reacquire own lock", func(t *testing.T) {
		dir := t.TempDir()
		if err := AcquireLock(dir); err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		if err := AcquireLock(dir); err != nil {
			t.Errorf("reacquire by same process: %v", err)
		}
	})

	t.Run("stale lock removed", func(t *testing.T) {
		dir := t.TempDir()
		// A PID far above pid_max is never alive.
		if err := os.WriteFile(filepath.Join(dir, "lock"), []byte("99999999"), 0644); err != nil {
			t.Fatalf("plant lock: %v", err)
		}
		if IsLocked(dir) {
			t.Error("stale lock reported as held")
		}
		if err := AcquireLock(dir); err != nil {
			t.Errorf("AcquireLock over stale lock: %v", err)
		}
	})

	t.Run("corrupt lock removed", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "lock"), []byte("not a pid"), 0644); err != nil {
			t.Fatalf("plant lock: %v", err)
		}
		if IsLocked(dir) {
			t.Error("corrupt lock reported as held")
		}
	})

	t.Run("live lock held", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "lock"), []byte(strconv.Itoa(os.Getppid())), 0644); err != nil {
			t.Fatalf("plant lock: %v", err)
		}
		if err := AcquireLock(dir); err != ErrStoreLocked {
			t.Errorf("AcquireLock = %v, want ErrStoreLocked", err)
		}
	})
}
