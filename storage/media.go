package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/cryarchy/fiverr-tools/utils"
)

// MediaDownloader stores gallery images under dir/<gig id>/.
type MediaDownloader struct {
	dir    string
	client *resty.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewMediaDownloader creates dir if needed. A nil client gets a default one.
func NewMediaDownloader(dir string, client *resty.Client, retry *utils.RetryConfig, logger *utils.Logger) (*MediaDownloader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("media: create dir %q: %w", dir, err)
	}
	if client == nil {
		client = resty.New()
	}
	return &MediaDownloader{dir: dir, client: client, retry: retry, logger: logger}, nil
}

// Save downloads rawURL and returns the local path it was written to. A file
// already on disk is not fetched again.
func (d *MediaDownloader) Save(ctx context.Context, gigID int64, rawURL string) (string, error) {
	name, err := mediaFileName(rawURL)
	if err != nil {
		return "", err
	}

	gigDir := filepath.Join(d.dir, strconv.FormatInt(gigID, 10))
	if err := os.MkdirAll(gigDir, 0755); err != nil {
		return "", fmt.Errorf("media: create dir %q: %w", gigDir, err)
	}

	dest := filepath.Join(gigDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	var body []byte
	err = d.retry.Do(ctx, "media download", func() error {
		resp, err := d.client.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("media: fetch %s: %w", rawURL, err)
	}

	if err := os.WriteFile(dest, body, 0644); err != nil {
		return "", fmt.Errorf("media: write %q: %w", dest, err)
	}

	d.logger.Debug("[media] Saved %s (%d bytes)", dest, len(body))
	return dest, nil
}

func mediaFileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("media: parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("media: no file name in %q", rawURL)
	}
	return name, nil
}
