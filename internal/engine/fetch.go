package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"reelcap/internal/logging"
)

var (
	lookPath = exec.LookPath

	fetchBackoffBase = time.Second
)

const (
	installedBinaryName = "ffmpeg"
	installLockName     = ".install.lock"

	// Download progress is only worth reporting for artifacts large enough
	// for the transfer to be observable.
	progressReportThreshold = 1 << 20
)

// resolveBinary locates an engine binary: the configured path first, then the
// system PATH, then a previously installed artifact, then a fresh download.
func (l *Loader) resolveBinary(ctx context.Context) (string, error) {
	if configured := strings.TrimSpace(l.opts.BinaryPath); configured != "" {
		if err := checkExecutable(configured); err != nil {
			return "", fmt.Errorf("configured engine binary: %w", err)
		}
		return configured, nil
	}

	if found, err := lookPath(installedBinaryName); err == nil {
		return found, nil
	}

	installed := filepath.Join(l.opts.Dir, installedBinaryName)
	if err := checkExecutable(installed); err == nil {
		return installed, nil
	}

	return l.fetchArtifact(ctx, installed)
}

// fetchArtifact downloads the pinned engine artifact into the private engine
// dir. The install dir is guarded with a file lock so concurrent processes do
// not race the same download.
func (l *Loader) fetchArtifact(ctx context.Context, destination string) (string, error) {
	url := strings.TrimSpace(l.opts.ArtifactURL)
	if url == "" {
		return "", fmt.Errorf("no engine binary found and no artifact URL configured")
	}
	if err := os.MkdirAll(l.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create engine dir: %w", err)
	}

	lock := flock.New(filepath.Join(l.opts.Dir, installLockName))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("acquire install lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("install lock unavailable")
	}
	defer lock.Unlock()

	// Another process may have finished the install while this one waited
	// on the lock.
	if err := checkExecutable(destination); err == nil {
		return destination, nil
	}

	retries := l.opts.FetchRetries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * fetchBackoffBase
			l.logger.Warn("artifact fetch retrying",
				logging.Int("attempt", attempt),
				logging.Duration("backoff", backoff),
				logging.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := l.downloadArtifact(ctx, url, destination); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", err
			}
			continue
		}
		return destination, nil
	}
	return "", fmt.Errorf("fetch engine artifact after %d attempts: %w", retries, lastErr)
}

func (l *Loader) downloadArtifact(ctx context.Context, url, destination string) error {
	attemptCtx := ctx
	if l.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, l.opts.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build artifact request: %w", err)
	}
	resp, err := l.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch artifact: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(l.opts.Dir, "artifact-*")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := l.copyWithProgress(tmp, resp.Body, resp.ContentLength); err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		return fmt.Errorf("mark artifact executable: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}

	l.logger.Info("engine artifact installed",
		logging.String("url", url),
		logging.String("path", destination),
	)
	return nil
}

// copyWithProgress streams the artifact to disk, mapping transfer position
// into the download band of the load progress scale. Small artifacts skip
// reporting entirely.
func (l *Loader) copyWithProgress(dst io.Writer, src io.Reader, total int64) error {
	report := total >= progressReportThreshold
	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if report {
				fraction := float64(written) / float64(total)
				if fraction > 1 {
					fraction = 1
				}
				l.progress.publish(progressFetching + int(fraction*float64(progressFetched-progressFetching)))
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *Loader) httpClient() *http.Client {
	if l.opts.HTTPClient != nil {
		return l.opts.HTTPClient
	}
	return http.DefaultClient
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
