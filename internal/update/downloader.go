package update

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const chunkSize = 32 * 1024

// HTTPDownloader downloads binaries over HTTP
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		client:    &http.Client{},
		userAgent: "selfup",
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func (d *HTTPDownloader) WithUserAgent(ua string) *HTTPDownloader {
	d.userAgent = ua
	return d
}

// Download streams url into dst. When events is non-nil it receives Started,
// one Progress per chunk written and Finished once dst is closed. A failed
// download leaves no file behind.
func (d *HTTPDownloader) Download(ctx context.Context, url, dst string, events chan<- DownloadEvent) (err error) {
	log.Debugf("starting download from %s", url)

	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	var contentLength *int64
	if resp.ContentLength >= 0 {
		n := resp.ContentLength
		contentLength = &n
	}
	if err := emit(ctx, events, Started{ContentLength: contentLength}); err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write response body to file: %w", werr)
			}
			if err := emit(ctx, events, Progress{ChunkLength: int64(n)}); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read response body: %w", rerr)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file %q: %w", dst, err)
	}

	log.Infof("successfully downloaded file to %s", dst)
	return emit(ctx, events, Finished{})
}

// VerifyChecksum verifies file against its entry in the checksums.txt at checksumURL
func (d *HTTPDownloader) VerifyChecksum(ctx context.Context, file, checksumURL string) error {
	checksums, err := d.downloadChecksums(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("failed to download checksums: %w", err)
	}

	name := getFilename(file)
	expected, ok := checksums[name]
	if !ok {
		return fmt.Errorf("checksum for %s not found in checksums file", name)
	}

	return d.VerifySHA256(file, expected)
}

// VerifySHA256 compares the SHA256 of file with the hex encoded sum
func (d *HTTPDownloader) VerifySHA256(file, sum string) error {
	actual, err := calculateSHA256(file)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, strings.TrimSpace(sum)) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", getFilename(file), actual, sum)
	}

	log.Debugf("checksum verified for %s", file)
	return nil
}

// downloadChecksums fetches a checksums.txt ("<sum>  <name>" per line)
func (d *HTTPDownloader) downloadChecksums(ctx context.Context, url string) (map[string]string, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	checksums := make(map[string]string)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		checksums[strings.TrimPrefix(fields[1], "*")] = fields[0]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	return checksums, nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	return resp, nil
}

// emit delivers ev unless events is nil, giving up when ctx is done
func emit(ctx context.Context, events chan<- DownloadEvent, ev DownloadEvent) error {
	if events == nil {
		return nil
	}
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// calculateSHA256 returns the hex encoded SHA256 of a file
func calculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func getFilename(path string) string {
	return filepath.Base(path)
}
