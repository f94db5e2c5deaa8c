// Package fetch downloads survey transport files from the public
// origin over plain HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	model "github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/simonaseno/nhanes/pkg/metrics"
)

// Default fetch configuration constants.
const (
	defaultBaseURL = "https://wwwn.cdc.gov/Nchs/Data/Nhanes/Public"
	defaultTimeout = 120 * time.Second
	dirPermissions = 0o755
)

// Client downloads source files described by registry entries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a fetch client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		logger:     logger.Get().Named("fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the remote address for one registry entry.
func (c *Client) URL(entry model.SourceEntry) string {
	return fmt.Sprintf("%s/%s/DataFiles/%s", c.baseURL, entry.Year, entry.LocalName())
}

// Fetch downloads the entry into destDir and returns the local path.
// The directory is created when absent and an existing file is
// overwritten. Only HTTP 200 counts as success; the body is staged to
// a temporary file and renamed so a failed transfer never leaves a
// half-written download behind.
func (c *Client) Fetch(ctx context.Context, entry model.SourceEntry, destDir string) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, dirPermissions); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	url := c.URL(entry)
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFetchFailure()
		return "", fmt.Errorf("fetch %s: %w", entry.File, err)
	}
	defer resp.Body.Close()

	metrics.RecordOriginResponse(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		metrics.RecordFetchFailure()
		return "", fmt.Errorf("%w: %s returned %d", ErrStatus, url, resp.StatusCode)
	}

	dest := filepath.Join(destDir, entry.LocalName())
	size, err := c.stage(dest, resp.Body)
	if err != nil {
		metrics.RecordFetchFailure()
		return "", fmt.Errorf("fetch %s: %w", entry.File, err)
	}

	elapsed := time.Since(started)
	metrics.RecordFileFetched()
	metrics.RecordFetchBytes(size)
	metrics.RecordFetchDuration(float64(elapsed.Milliseconds()))
	c.logger.Debug(ctx, "downloaded source file",
		logger.String("file", entry.File),
		logger.String("cycle", entry.Cycle),
		logger.Int("bytes", int(size)),
		logger.Duration("elapsed", elapsed),
	)
	return dest, nil
}

// stage streams body to dest via a temporary sibling file so the final
// path only ever holds complete downloads.
func (c *Client) stage(dest string, body io.Reader) (int64, error) {
	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("stage download: %w", err)
	}

	size, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("stream body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("flush download: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("publish download: %w", err)
	}
	return size, nil
}
