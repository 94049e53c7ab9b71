package attack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

// Client fetches the enterprise ATT&CK bundle. It never retries: a partial
// bundle would quietly degrade every mapping.
type Client struct {
	url        string
	httpClient *resty.Client
	logger     *utils.Logger
}

func NewClient(cfg *config.AttackConfig, logger *utils.Logger) (*Client, error) {
	if cfg.DownloadURL == "" {
		return nil, fmt.Errorf("ATTACK_DOWNLOAD_URL is required")
	}

	httpClient := resty.New().
		SetTimeout(time.Duration(cfg.HttpTimeoutSeconds) * time.Second).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		url:        cfg.DownloadURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Download fetches the bundle, checks that it is an ATT&CK bundle and saves it
// to dest so later runs can work offline. dest is only replaced once the
// download is known to be good. The raw bytes are returned for parsing.
func (c *Client) Download(ctx context.Context, dest string) ([]byte, error) {
	body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	var bundle stixBundle
	if err := json.Unmarshal(body, &bundle); err != nil || bundle.Objects == nil {
		return nil, &utils.NetworkError{URL: c.url, Err: fmt.Errorf(`response is not an ATT&CK bundle, no "objects" array`)}
	}

	if err := c.save(dest, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Fetch downloads the bundle, parses it and only then saves it to dest.
func (c *Client) Fetch(ctx context.Context, dest string, opts Options) (*Taxonomy, error) {
	body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	taxonomy, err := Parse(body, c.url, opts, c.logger)
	if err != nil {
		return nil, err
	}

	if err := c.save(dest, body); err != nil {
		return nil, err
	}
	return taxonomy, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	c.logger.Info("Downloading file from %s", c.url)

	resp, err := c.httpClient.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, &utils.NetworkError{URL: c.url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &utils.NetworkError{URL: c.url, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, &utils.NetworkError{URL: c.url, Err: fmt.Errorf("response is not valid JSON (%d bytes)", len(body))}
	}
	return body, nil
}

// save writes body next to dest and renames it into place, so a failed write
// never leaves a truncated taxonomy behind.
func (c *Client) save(dest string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return &utils.WriteError{Path: dest, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return &utils.WriteError{Path: dest, Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return &utils.WriteError{Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &utils.WriteError{Path: dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &utils.WriteError{Path: dest, Err: err}
	}

	c.logger.Info("Downloaded file saved to %s (%d bytes)", dest, len(body))
	return nil
}
