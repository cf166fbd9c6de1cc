package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

var (
	ErrManifestIO    = errors.New("manifest: io failure")
	ErrRestoreFailed = errors.New("manifest: restore failed")
	ErrEditPending   = errors.New("manifest: an edit is already pending")
)

// snapshot is one outstanding restoration obligation.
type snapshot struct {
	path     string
	original string
	mode     fs.FileMode
}

// RestoreManager owns at most one pending manifest restoration. The normal
// exit path (EditHandle.Close) and the interrupt actor claim the slot under
// the same lock, so exactly one side writes the original text back.
type RestoreManager struct {
	log zerolog.Logger

	mu      sync.Mutex
	pending *snapshot

	// exit terminates the process after an interrupt-driven restore;
	// swapped out by tests.
	exit func(code int)
}

func NewRestoreManager(log zerolog.Logger) *RestoreManager {
	return &RestoreManager{log: log, exit: os.Exit}
}

// EditHandle scopes one manifest edit. Close is idempotent and safe to call
// from defer on every exit path.
type EditHandle struct {
	m    *RestoreManager
	snap *snapshot
}

// BeginEdit records the obligation to write original back to path. Only one
// edit may be pending at a time.
func (m *RestoreManager) BeginEdit(path, original string, mode fs.FileMode) (*EditHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return nil, fmt.Errorf("%w: %s", ErrEditPending, m.pending.path)
	}
	m.pending = &snapshot{path: path, original: original, mode: mode}
	return &EditHandle{m: m, snap: m.pending}, nil
}

// Close restores the manifest unless the interrupt actor already did.
func (h *EditHandle) Close() error {
	if h == nil || h.snap == nil {
		return nil
	}
	snap := h.snap
	h.snap = nil
	if !h.m.claim(snap) {
		return nil
	}
	return h.m.restore(snap)
}

// claim empties the slot if it still holds snap, reporting whether the
// caller now owns the restore.
func (m *RestoreManager) claim(snap *snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != snap {
		return false
	}
	m.pending = nil
	return true
}

// takePending claims whatever edit is outstanding, if any.
func (m *RestoreManager) takePending() *snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.pending
	m.pending = nil
	return snap
}

func (m *RestoreManager) restore(snap *snapshot) error {
	if err := os.WriteFile(snap.path, []byte(snap.original), snap.mode); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRestoreFailed, snap.path, err)
	}
	m.log.Debug().Str("path", snap.path).Msg("manifest restored")
	return nil
}

// InstallInterruptHandler starts the interrupt actor: on SIGINT or SIGTERM
// it claims any pending edit, restores it, and terminates the process. It
// never returns control to the interrupted call stack.
func (m *RestoreManager) InstallInterruptHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		m.handleInterrupt(sig)
	}()
}

func (m *RestoreManager) handleInterrupt(sig os.Signal) {
	m.log.Warn().Str("signal", sig.String()).Msg("interrupted")
	if snap := m.takePending(); snap != nil {
		if err := m.restore(snap); err != nil {
			// The restore error never suppresses termination.
			m.log.Error().Err(err).Msg("restore on interrupt failed")
		}
	}
	m.exit(130)
}

// RemoveSections reads the manifest at path, strips the named section's
// blocks, records the restore obligation, and writes the edited text in
// place. The returned handle undoes the edit on Close.
func RemoveSections(rm *RestoreManager, path, section string) (*EditHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestIO, path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestIO, path, err)
	}

	original := string(data)
	edited := StripSections(original, section)

	handle, err := rm.BeginEdit(path, original, info.Mode().Perm())
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(edited), info.Mode().Perm()); err != nil {
		// The obligation is already recorded; discharge it before
		// surfacing the write failure.
		closeErr := handle.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("%w: %s: %v (restore also failed: %v)", ErrManifestIO, path, err, closeErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestIO, path, err)
	}
	return handle, nil
}
