// Package export periodically saves the rendered board of selected railways
// to disk, one file per railway.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const timestampLayout = "20060102T150405"

// Config controls the export job
type Config struct {
	// BaseURL is the server serving /render/{railway}
	BaseURL   string
	OutputDir string
	// Railways are short railway ids, e.g. Toei.Mita
	Railways []string
	Interval time.Duration
	// Timestamped also keeps a copy named after the run time
	Timestamped bool
	Timeout     time.Duration
	MaxRetries  uint64
	// RetryInterval is the first backoff delay
	RetryInterval time.Duration
}

// DefaultConfig returns the export settings for a local server
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8080",
		OutputDir:     filepath.Join("public", "status"),
		Interval:      time.Minute,
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		RetryInterval: time.Second,
		Railways: []string{
			"JR-East.ChuoRapid",
			"JR-East.Yamanote",
			"JR-East.KeihinTohoku",
			"Toei.Asakusa",
			"Toei.Mita",
			"Toei.Shinjuku",
			"Toei.Oedo",
		},
	}
}

// Report summarizes one export run
type Report struct {
	RunID   string
	Written []string
	Failed  map[string]error
}

// Exporter fetches rendered boards and writes them to OutputDir
type Exporter struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an exporter and makes sure the output directory exists
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}

	return &Exporter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SafeID turns a railway id into a file name stem
func SafeID(id string) string {
	return strings.NewReplacer(".", "_", ":", "_").Replace(id)
}

// Run exports immediately and then on every interval until ctx is done
func (e *Exporter) Run(ctx context.Context) error {
	e.RunOnce(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce exports every configured railway. A failing railway is logged and
// reported without stopping the rest.
func (e *Exporter) RunOnce(ctx context.Context) Report {
	report := Report{
		RunID:  uuid.NewString(),
		Failed: make(map[string]error),
	}
	logger := e.logger.With("run", report.RunID)
	at := e.now()

	logger.Info("export started", "railways", len(e.cfg.Railways))
	for _, id := range e.cfg.Railways {
		if ctx.Err() != nil {
			report.Failed[id] = ctx.Err()
			continue
		}
		paths, err := e.exportOne(ctx, id, at)
		if err != nil {
			logger.Error("export failed", "railway", id, "error", err)
			report.Failed[id] = err
			continue
		}
		logger.Debug("exported", "railway", id, "files", paths)
		report.Written = append(report.Written, paths...)
	}
	logger.Info("export finished", "written", len(report.Written), "failed", len(report.Failed))
	return report
}

func (e *Exporter) exportOne(ctx context.Context, id string, at time.Time) ([]string, error) {
	body, err := backoff.RetryWithData(
		func() ([]byte, error) {
			return e.fetch(ctx, id)
		},
		e.newBackOff(ctx),
	)
	if err != nil {
		return nil, err
	}

	safe := SafeID(id)
	latest := filepath.Join(e.cfg.OutputDir, safe+"_latest.svg")
	if err := writeFile(latest, body); err != nil {
		return nil, err
	}
	paths := []string{latest}

	if e.cfg.Timestamped {
		stamped := filepath.Join(e.cfg.OutputDir, fmt.Sprintf("%s_%s.svg", safe, at.Format(timestampLayout)))
		if err := writeFile(stamped, body); err != nil {
			return paths, err
		}
		paths = append(paths, stamped)
	}
	return paths, nil
}

func (e *Exporter) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if e.cfg.RetryInterval > 0 {
		b.InitialInterval = e.cfg.RetryInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, e.cfg.MaxRetries), ctx)
}

func (e *Exporter) fetch(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/render/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("render %s: HTTP %d", id, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// writeFile replaces path atomically so readers never see a partial image
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
