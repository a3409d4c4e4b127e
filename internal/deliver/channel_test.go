package deliver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

func webmPayload() []byte {
	return []byte{0x1a, 0x45, 0xdf, 0xa3, 0x42, 0x86, 0x81, 0x01}
}

func TestDeliverWritesAssetToOutputDir(t *testing.T) {
	dir := t.TempDir()
	channel := NewChannel(dir, logging.NewNop())

	asset := media.Asset{Bytes: webmPayload(), Format: media.FormatWebM}
	path, err := channel.Deliver(asset, "capture-001.webm")
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if path != filepath.Join(dir, "capture-001.webm") {
		t.Fatalf("unexpected delivery path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read delivered file: %v", err)
	}
	if string(data) != string(webmPayload()) {
		t.Fatal("delivered bytes do not match the asset")
	}
}

func TestDeliverLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	channel := NewChannel(dir, logging.NewNop())

	asset := media.Asset{Bytes: webmPayload(), Format: media.FormatWebM}
	if _, err := channel.Deliver(asset, "capture.webm"); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".reelcap-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the delivered file, got %d entries", len(entries))
	}
}

func TestDeliverRejectsUnrecognizedPayload(t *testing.T) {
	dir := t.TempDir()
	channel := NewChannel(dir, logging.NewNop())

	asset := media.Asset{Bytes: []byte("definitely not media"), Format: media.FormatWebM}
	_, err := channel.Deliver(asset, "bogus.webm")
	if !errors.Is(err, services.ErrInvalidDeliveryPayload) {
		t.Fatalf("expected ErrInvalidDeliveryPayload, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatal("rejected payload must not reach the output dir")
	}
}

func TestDeliverRejectsMislabeledPayload(t *testing.T) {
	channel := NewChannel(t.TempDir(), logging.NewNop())

	// GIF bytes labeled as mp4.
	asset := media.Asset{Bytes: []byte("GIF89a\x01\x02"), Format: media.FormatMP4}
	_, err := channel.Deliver(asset, "clip.mp4")
	if !errors.Is(err, services.ErrInvalidDeliveryPayload) {
		t.Fatalf("expected ErrInvalidDeliveryPayload, got %v", err)
	}
}

func TestDeliverStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	channel := NewChannel(dir, logging.NewNop())

	asset := media.Asset{Bytes: webmPayload(), Format: media.FormatWebM}
	path, err := channel.Deliver(asset, "../escape.webm")
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("delivery escaped the output dir: %q", path)
	}
}

func TestDeliverRejectsEmptyFilename(t *testing.T) {
	channel := NewChannel(t.TempDir(), logging.NewNop())
	asset := media.Asset{Bytes: webmPayload(), Format: media.FormatWebM}
	if _, err := channel.Deliver(asset, "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
