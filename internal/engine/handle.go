package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrStaleHandle marks a handle issued before the loader was last reset.
// Stale handles refuse every operation; callers re-acquire via EnsureReady.
var ErrStaleHandle = errors.New("engine handle is stale")

const slotDirName = "slots"

// Handle is a ready engine instance. It owns the engine's private storage
// dir and is valid for exactly one loader generation.
type Handle struct {
	loader     *Loader
	generation uint64
	dir        string
	binary     string
}

// Binary returns the resolved engine executable path.
func (h *Handle) Binary() string { return h.binary }

func (h *Handle) prepareStorage() error {
	return os.MkdirAll(filepath.Join(h.dir, slotDirName), 0o755)
}

func (h *Handle) check() error {
	if h.loader.currentGeneration() != h.generation {
		return ErrStaleHandle
	}
	return nil
}

// SlotPath returns the filesystem path of a named slot inside the engine's
// private storage. The slot does not have to exist yet.
func (h *Handle) SlotPath(name string) string {
	return filepath.Join(h.dir, slotDirName, name)
}

// WriteSlot stores bytes under a slot name.
func (h *Handle) WriteSlot(name string, data []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	if err := validSlotName(name); err != nil {
		return err
	}
	if err := os.WriteFile(h.SlotPath(name), data, 0o644); err != nil {
		return fmt.Errorf("write slot %s: %w", name, err)
	}
	return nil
}

// ReadSlot returns the bytes stored under a slot name.
func (h *Handle) ReadSlot(name string) ([]byte, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	if err := validSlotName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.SlotPath(name))
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", name, err)
	}
	return data, nil
}

// RemoveSlot deletes a slot. Removing a slot that does not exist is not an
// error.
func (h *Handle) RemoveSlot(name string) error {
	if err := h.check(); err != nil {
		return err
	}
	if err := validSlotName(name); err != nil {
		return err
	}
	if err := os.Remove(h.SlotPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove slot %s: %w", name, err)
	}
	return nil
}

// Invoke runs the engine binary with the given arguments. Cancellation of ctx
// kills the process. On failure the error carries the last line of the
// engine's stderr.
func (h *Handle) Invoke(ctx context.Context, args ...string) error {
	if err := h.check(); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, h.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			lines := strings.Split(detail, "\n")
			return fmt.Errorf("engine invocation: %w: %s", err, strings.TrimSpace(lines[len(lines)-1]))
		}
		return fmt.Errorf("engine invocation: %w", err)
	}
	return nil
}

func validSlotName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("slot name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("slot name %q must not contain path separators", name)
	}
	return nil
}
