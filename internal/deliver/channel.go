package deliver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

// Channel hands finished assets to the user by writing them into the output
// directory. Payloads are validated by content, not by extension, so a
// corrupt or mislabeled asset never reaches the user's disk.
type Channel struct {
	outputDir string
	logger    *slog.Logger
}

// NewChannel builds a Channel targeting outputDir.
func NewChannel(outputDir string, logger *slog.Logger) *Channel {
	return &Channel{
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "deliver"),
	}
}

// Deliver validates the asset and writes it under filename in the output
// directory, returning the final path. The write goes through a temp file and
// rename so a crash never leaves a truncated file at the final name.
func (c *Channel) Deliver(asset media.Asset, filename string) (string, error) {
	sniffed, ok := media.Sniff(asset.Bytes)
	if !ok {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "validate", "payload is not recognized media", nil)
	}
	if asset.Format != "" && sniffed != asset.Format {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "validate",
			fmt.Sprintf("payload sniffs as %s but is labeled %s", sniffed, asset.Format), nil)
	}

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", services.Wrap(services.ErrValidation, "deliver", "validate", "delivery filename is empty", nil)
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "stage", "create output directory", err)
	}

	tmp, err := os.CreateTemp(c.outputDir, ".reelcap-*")
	if err != nil {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "stage", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(asset.Bytes); err != nil {
		tmp.Close()
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "write", "write payload", err)
	}
	if err := tmp.Close(); err != nil {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "write", "flush payload", err)
	}

	finalPath := filepath.Join(c.outputDir, filename)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", services.Wrap(services.ErrInvalidDeliveryPayload, "deliver", "publish", "move payload into place", err)
	}

	c.logger.Info("asset delivered",
		logging.String("path", finalPath),
		logging.String("format", string(sniffed)),
		logging.Int("bytes", len(asset.Bytes)),
	)
	return finalPath, nil
}
