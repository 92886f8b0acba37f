package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

const (
	portLockTimeout = 5 * time.Second
	maxPortAttempts = 20
)

var ErrNoFreePort = errors.New("no free port available")

// PortAllocator hands out listen ports. Ports come from an OS-level bind to
// port 0 and are recorded in a reservation file guarded by a flock, so two
// callers never receive the same port, whether they share a process or not.
// Reservations owned by dead processes are pruned on every acquire.
type PortAllocator struct {
	lockPath string
	mu       sync.Mutex
	pid      int

	// probe returns a candidate port; replaced in tests.
	probe func() (int, error)
}

type reservation struct {
	Port int `json:"port"`
	PID  int `json:"pid"`
}

func NewPortAllocator(lockPath string) *PortAllocator {
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "devwatch-ports.lock")
	}
	return &PortAllocator{
		lockPath: lockPath,
		pid:      os.Getpid(),
		probe:    probeEphemeralPort,
	}
}

// Acquire reserves and returns a port not held by any live reservation.
func (a *PortAllocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var port int
	err := a.withLock(func(held []reservation) ([]reservation, error) {
		taken := make(map[int]bool, len(held))
		for _, r := range held {
			taken[r.Port] = true
		}
		for i := 0; i < maxPortAttempts; i++ {
			p, err := a.probe()
			if err != nil {
				return nil, err
			}
			if !taken[p] {
				port = p
				return append(held, reservation{Port: p, PID: a.pid}), nil
			}
		}
		return nil, ErrNoFreePort
	})
	if err != nil {
		return 0, err
	}
	return port, nil
}

// Release drops this process's reservation of port. Unknown ports are ignored.
func (a *PortAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_ = a.withLock(func(held []reservation) ([]reservation, error) {
		kept := held[:0]
		for _, r := range held {
			if r.Port == port && r.PID == a.pid {
				continue
			}
			kept = append(kept, r)
		}
		return kept, nil
	})
}

// Held returns the live reservations currently on disk.
func (a *PortAllocator) Held() ([]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ports []int
	err := a.withLock(func(held []reservation) ([]reservation, error) {
		for _, r := range held {
			ports = append(ports, r.Port)
		}
		return held, nil
	})
	return ports, err
}

func (a *PortAllocator) withLock(fn func([]reservation) ([]reservation, error)) error {
	if err := os.MkdirAll(filepath.Dir(a.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(a.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), portLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", a.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("port lock held: %s", a.lockPath)
	}
	defer lock.Unlock()

	held, err := a.load()
	if err != nil {
		return err
	}
	held = pruneDead(held)

	next, err := fn(held)
	if err != nil {
		return err
	}
	return a.save(next)
}

func (a *PortAllocator) reservationsPath() string {
	return a.lockPath + ".json"
}

func (a *PortAllocator) load() ([]reservation, error) {
	data, err := os.ReadFile(a.reservationsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reservations: %w", err)
	}
	var held []reservation
	if err := json.Unmarshal(data, &held); err != nil {
		// A corrupt file only loses stale reservations; start over.
		return nil, nil
	}
	return held, nil
}

func (a *PortAllocator) save(held []reservation) error {
	data, err := json.Marshal(held)
	if err != nil {
		return fmt.Errorf("marshal reservations: %w", err)
	}

	target := a.reservationsPath()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write reservations: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename reservations: %w", err)
	}
	return nil
}

func pruneDead(held []reservation) []reservation {
	kept := held[:0]
	for _, r := range held {
		if isProcessAlive(r.PID) {
			kept = append(kept, r)
		}
	}
	return kept
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func probeEphemeralPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("probe port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
