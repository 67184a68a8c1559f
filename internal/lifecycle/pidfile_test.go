// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// deadPID is above the kernel pid_max ceiling, so it never names a live process.
const deadPID = 1 << 22

func TestPIDFileManager_Create(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("writes pid with restrictive permissions", func(t *testing.T) {
		pidPath := filepath.Join(tmpDir, "handoffd.pid")
		m := NewPIDFileManager(pidPath)
		defer m.Remove()

		if err := m.Create(1234); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		pid, err := m.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if pid != 1234 {
			t.Errorf("Read() = %d, want 1234", pid)
		}

		info, err := os.Stat(pidPath)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0600 {
			t.Errorf("PID file mode = %04o, want 0600", mode)
		}
	})

	t.Run("refuses existing file", func(t *testing.T) {
		pidPath := filepath.Join(tmpDir, "duplicate.pid")
		m1 := NewPIDFileManager(pidPath)
		defer m1.Remove()

		if err := m1.Create(1234); err != nil {
			t.Fatalf("first Create() error = %v", err)
		}

		err := NewPIDFileManager(pidPath).Create(5678)
		if !errors.Is(err, ErrPIDFileExists) {
			t.Errorf("second Create() error = %v, want ErrPIDFileExists", err)
		}
	})

	t.Run("creates parent directory", func(t *testing.T) {
		deepPath := filepath.Join(tmpDir, "run", "handoff", "handoffd.pid")
		m := NewPIDFileManager(deepPath)
		defer m.Remove()

		if err := m.Create(1234); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		info, err := os.Stat(filepath.Dir(deepPath))
		if err != nil {
			t.Fatalf("parent directory not created: %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0700 {
			t.Errorf("parent directory mode = %04o, want 0700", mode)
		}
	})

	t.Run("rejects world-writable directory", func(t *testing.T) {
		unsafeDir := filepath.Join(tmpDir, "unsafe")
		if err := os.Mkdir(unsafeDir, 0777); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
		if err := os.Chmod(unsafeDir, 0777); err != nil {
			t.Fatalf("Chmod() error = %v", err)
		}

		err := NewPIDFileManager(filepath.Join(unsafeDir, "x.pid")).Create(1)
		if !errors.Is(err, ErrUnsafeDirectory) {
			t.Errorf("Create() error = %v, want ErrUnsafeDirectory", err)
		}
	})
}

func TestPIDFileManager_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr error
	}{
		{name: "valid", content: "9999\n", want: 9999},
		{name: "surrounding whitespace", content: "  42 \n", want: 42},
		{name: "not a number", content: "abc", wantErr: ErrInvalidPID},
		{name: "zero", content: "0", wantErr: ErrInvalidPID},
		{name: "negative", content: "-5", wantErr: ErrInvalidPID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "read.pid")
			if err := os.WriteFile(pidPath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			pid, err := NewPIDFileManager(pidPath).Read()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if pid != tt.want {
				t.Errorf("Read() = %d, want %d", pid, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPIDFileManager(filepath.Join(t.TempDir(), "none.pid")).Read()
		if !os.IsNotExist(err) {
			t.Errorf("Read() error = %v, want not-exist", err)
		}
	})
}

func TestPIDFileManager_Remove(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "remove.pid")
	m := NewPIDFileManager(pidPath)

	if err := m.Create(1234); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if m.Exists() {
		t.Error("PID file still exists after Remove()")
	}

	// Removing again is fine.
	if err := m.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestPIDFileManager_HoldsLock(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "flock.pid")
	m := NewPIDFileManager(pidPath)
	defer m.Remove()

	if err := m.Create(1234); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	f, err := os.OpenFile(pidPath, os.O_RDWR, 0600)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		t.Fatal("acquired lock on already-locked file")
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		t.Errorf("Flock error = %v, want EWOULDBLOCK", err)
	}
}

func TestPIDFileManager_Acquire(t *testing.T) {
	t.Run("fresh path", func(t *testing.T) {
		m := NewPIDFileManager(filepath.Join(t.TempDir(), "fresh.pid"))
		defer m.Remove()

		stale, err := m.Acquire(os.Getpid())
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if stale != 0 {
			t.Errorf("Acquire() stale = %d, want 0", stale)
		}
	})

	t.Run("replaces stale file", func(t *testing.T) {
		pidPath := filepath.Join(t.TempDir(), "stale.pid")
		if err := os.WriteFile(pidPath, []byte("4194304\n"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		m := NewPIDFileManager(pidPath)
		defer m.Remove()

		stale, err := m.Acquire(os.Getpid())
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if stale != deadPID {
			t.Errorf("Acquire() stale = %d, want %d", stale, deadPID)
		}
		if pid, _ := m.Read(); pid != os.Getpid() {
			t.Errorf("Read() = %d, want own pid", pid)
		}
	})

	t.Run("refuses live owner", func(t *testing.T) {
		pidPath := filepath.Join(t.TempDir(), "live.pid")
		owner := NewPIDFileManager(pidPath)
		if err := owner.Create(os.Getpid()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer owner.Remove()

		_, err := NewPIDFileManager(pidPath).Acquire(os.Getpid())
		if !errors.Is(err, ErrPIDFileExists) {
			t.Errorf("Acquire() error = %v, want ErrPIDFileExists", err)
		}
	})
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("own process should be running")
	}
	if IsProcessRunning(0) {
		t.Error("pid 0 should not count as running")
	}
	if IsProcessRunning(deadPID) {
		t.Errorf("pid %d should not be running", deadPID)
	}
}
