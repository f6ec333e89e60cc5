package railboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jusunglee/railboard/internal/board"
	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/feed"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/upstream"
)

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	unsetAfter(t, "RAILBOARD_TEST_BASE", "RAILBOARD_TEST_SHARED")

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".env"), []byte("RAILBOARD_TEST_BASE=base\nRAILBOARD_TEST_SHARED=from-env\n"), 0o600)
	os.WriteFile(filepath.Join(dir, ".env.local"), []byte("RAILBOARD_TEST_SHARED=from-local\n"), 0o600)

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := os.Getenv("RAILBOARD_TEST_BASE"); got != "base" {
		t.Errorf("Expected base, got %q", got)
	}
	if got := os.Getenv("RAILBOARD_TEST_SHARED"); got != "from-local" {
		t.Errorf("Expected .env.local to override, got %q", got)
	}

	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Errorf("Missing files should be skipped, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults and legacy key", func(t *testing.T) {
		unsetAfter(t, "ODPT_CONSUMER_KEY", "USE_MOCK", "UPDATE_INTERVAL", "ROTATE_INTERVAL", "TIME_WEIGHTED")
		t.Setenv("ODPT_COINSUMER_KEY", "legacy")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.ConsumerKey != "legacy" {
			t.Errorf("Expected legacy key fallback, got %q", cfg.ConsumerKey)
		}
		if cfg.UpdateInterval != 30*time.Second || cfg.RotateInterval != 10*time.Second {
			t.Errorf("Unexpected intervals %v %v", cfg.UpdateInterval, cfg.RotateInterval)
		}
		if cfg.Mock || cfg.TimeWeighted {
			t.Error("Expected flags off by default")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("ODPT_CONSUMER_KEY", "key")
		t.Setenv("ODPT_COINSUMER_KEY", "legacy")
		t.Setenv("ODPT_CHALLENGE_CONSUMER_KEY", "challenge")
		t.Setenv("USE_MOCK", "true")
		t.Setenv("TIME_WEIGHTED", "1")
		t.Setenv("UPDATE_INTERVAL", "45")
		t.Setenv("ROTATE_INTERVAL", "5s")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.ConsumerKey != "key" || cfg.ChallengeConsumerKey != "challenge" {
			t.Errorf("Unexpected keys %q %q", cfg.ConsumerKey, cfg.ChallengeConsumerKey)
		}
		if !cfg.Mock || !cfg.TimeWeighted {
			t.Error("Expected flags on")
		}
		if cfg.UpdateInterval != 45*time.Second {
			t.Errorf("Expected 45s, got %v", cfg.UpdateInterval)
		}
		if cfg.RotateInterval != 5*time.Second {
			t.Errorf("Expected 5s, got %v", cfg.RotateInterval)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("USE_MOCK", "maybe")
		if _, err := FromEnv(); err == nil {
			t.Error("Expected error for invalid bool")
		}
		t.Setenv("USE_MOCK", "")
		t.Setenv("UPDATE_INTERVAL", "soon")
		if _, err := FromEnv(); err == nil {
			t.Error("Expected error for invalid duration")
		}
	})
}

func TestNewLocalRequiresKey(t *testing.T) {
	_, err := NewLocal(Config{}, nil)
	if !errors.Is(err, upstream.ErrNoConsumerKey) {
		t.Errorf("Expected ErrNoConsumerKey, got %v", err)
	}
}

func newMockClient(t *testing.T) *LocalClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mock = true
	cfg.UpdateInterval = time.Hour
	cfg.RotateInterval = 0

	c, err := NewLocal(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	t.Cleanup(c.Close)

	deadline := time.Now().Add(5 * time.Second)
	for c.GetLastUpdate().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.GetLastUpdate().IsZero() {
		t.Fatal("Timed out waiting for the first cycle")
	}
	return c
}

func TestLocalClient(t *testing.T) {
	c := newMockClient(t)

	if len(c.GetRailways()) == 0 {
		t.Fatal("Expected catalog railways")
	}

	line, err := c.GetLine("Toei.Mita")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if line.Railway.ID != "odpt.Railway:Toei.Mita" {
		t.Errorf("Expected full railway id, got %s", line.Railway.ID)
	}
	if len(line.Snapshot.Stations) != 12 || len(line.Snapshot.Trains) != 10 {
		t.Errorf("Expected mock line, got %d stations %d trains", len(line.Snapshot.Stations), len(line.Snapshot.Trains))
	}

	if _, err := c.GetLine("Nowhere.Line"); !errors.Is(err, catalog.ErrUnknownRailway) {
		t.Errorf("Expected ErrUnknownRailway, got %v", err)
	}

	scene, err := c.GetScene("Toei.Mita", SceneOptions{Width: 1200, MaxStationsPerRow: 6})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if scene.Width != 1200 {
		t.Errorf("Expected width override, got %v", scene.Width)
	}
	if len(scene.Tracks) != 2 {
		t.Errorf("Expected 2 rows of track, got %d", len(scene.Tracks))
	}
	if len(scene.Badges) != 10 {
		t.Errorf("Expected 10 badges, got %d", len(scene.Badges))
	}
	if !scene.Estimated {
		t.Error("Mock positions should be marked as estimated")
	}

	b := c.GetBoard()
	if len(b.Groups) == 0 {
		t.Fatal("Expected board groups")
	}
	sel, err := c.SelectBoardGroup(1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.GetBoard().Selection != sel {
		t.Errorf("Expected selection %+v, got %+v", sel, c.GetBoard().Selection)
	}
	if _, err := c.SelectBoardGroup(len(b.Groups)); err == nil {
		t.Error("Expected error for out of range group")
	}

	if len(c.GetServiceInfo()) == 0 {
		t.Error("Expected service information from mock source")
	}
}

// delayedSource reports a delay on Toei Asakusa that names two mock stations
type delayedSource struct {
	*feed.MockSource
}

func (delayedSource) TrainInformation(_ context.Context, operator string) ([]models.OperationInfo, error) {
	if operator != "odpt.Operator:Toei" {
		return nil, nil
	}
	return []models.OperationInfo{{
		Railway:  "odpt.Railway:Toei.Asakusa",
		Operator: operator,
		Status:   models.StatusDelay,
		Text:     "Kanda駅で遅れ。Tokyo駅方面",
	}}, nil
}

func TestBoardNotice(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Mock = true
	cfg.UpdateInterval = time.Hour
	cfg.RotateInterval = 0

	c := NewLocalWithSource(cfg, cat, delayedSource{feed.NewMockSource()}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(c.Close)

	deadline := time.Now().Add(5 * time.Second)
	for c.GetLastUpdate().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.GetLastUpdate().IsZero() {
		t.Fatal("Timed out waiting for the first cycle")
	}

	if b := c.GetBoard(); len(b.Notice) != 0 {
		t.Errorf("Expected no notice for a normal railway, got %+v", b.Notice)
	}

	toei := -1
	for i, g := range cat.Groups() {
		if g.Operator == "odpt.Operator:Toei" {
			toei = i
		}
	}
	if _, err := c.SelectBoardGroup(toei); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []board.Part{
		{Text: "Kanda", Highlighted: true},
		{Text: "駅で遅れ。"},
		{Text: "Tokyo", Highlighted: true},
		{Text: "駅方面"},
	}
	if diff := cmp.Diff(want, c.GetBoard().Notice); diff != "" {
		t.Errorf("Notice mismatch (-want +got):\n%s", diff)
	}
}
