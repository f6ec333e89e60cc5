package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jusunglee/railboard/internal/models"
)

const mita = "odpt.Railway:Toei.Mita"

func testStations() []models.Station {
	return []models.Station{
		{ID: "odpt.Station:Toei.Mita.Meguro", Railway: mita, SequenceIndex: 0},
		{ID: "odpt.Station:Toei.Mita.Shirokanedai", Railway: mita, SequenceIndex: 1},
		{ID: "odpt.Station:Toei.Mita.Mita", Railway: mita, SequenceIndex: 2},
	}
}

func TestCommit(t *testing.T) {
	s := NewStore()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	token := s.BeginCycle()
	ok := s.Commit(token, Update{
		Lines: []LineResult{{
			Railway:  mita,
			Stations: testStations(),
			Trains:   []models.Train{{ID: "t1", FromStationID: "odpt.Station:Toei.Mita.Mita"}},
		}},
		Infos: map[string][]models.OperationInfo{
			"odpt.Operator:Toei": {{Railway: mita, Operator: "odpt.Operator:Toei", Status: models.StatusNormal}},
		},
		At: at,
	})
	if !ok {
		t.Fatal("Expected first commit to succeed")
	}

	line, found := s.Line(mita)
	if !found {
		t.Fatal("Expected line snapshot after commit")
	}
	if line.Cycle != token {
		t.Errorf("Expected cycle %d, got %d", token, line.Cycle)
	}
	if !line.UpdatedAt.Equal(at) {
		t.Errorf("Expected updated at %v, got %v", at, line.UpdatedAt)
	}
	if diff := cmp.Diff(testStations(), line.Stations); diff != "" {
		t.Errorf("Stations mismatch (-want +got):\n%s", diff)
	}
	if len(s.Infos("odpt.Operator:Toei")) != 1 {
		t.Errorf("Expected 1 info, got %d", len(s.Infos("odpt.Operator:Toei")))
	}
	if s.Cycle() != token {
		t.Errorf("Expected committed cycle %d, got %d", token, s.Cycle())
	}
	if !s.LastUpdate().Equal(at) {
		t.Errorf("Expected last update %v, got %v", at, s.LastUpdate())
	}
}

func TestStaleCommitRejected(t *testing.T) {
	s := NewStore()

	older := s.BeginCycle()
	newer := s.BeginCycle()

	if s.Commit(older, Update{Lines: []LineResult{{Railway: mita, Stations: testStations()}}}) {
		t.Error("Expected commit of superseded cycle to be rejected")
	}
	if _, found := s.Line(mita); found {
		t.Error("Rejected commit must not write anything")
	}

	if !s.Commit(newer, Update{Lines: []LineResult{{Railway: mita, Stations: testStations()}}}) {
		t.Fatal("Expected newest cycle to commit")
	}
	if s.Commit(newer, Update{}) {
		t.Error("Expected second commit of the same cycle to be rejected")
	}
}

func TestFailedLineKeepsLastGood(t *testing.T) {
	s := NewStore()

	first := s.BeginCycle()
	s.Commit(first, Update{Lines: []LineResult{{
		Railway:  mita,
		Stations: testStations(),
		Trains:   []models.Train{{ID: "t1"}},
	}}})

	second := s.BeginCycle()
	s.Commit(second, Update{Lines: []LineResult{
		{Railway: mita, Err: errors.New("HTTP 503")},
		{Railway: "odpt.Railway:Toei.Oedo", Err: errors.New("timeout")},
	}})

	line, _ := s.Line(mita)
	if line.Error != "HTTP 503" {
		t.Errorf("Expected error to be recorded, got %q", line.Error)
	}
	if line.Cycle != first {
		t.Errorf("Expected snapshot from cycle %d, got %d", first, line.Cycle)
	}
	if len(line.Trains) != 1 || len(line.Stations) != 3 {
		t.Errorf("Expected last good trains and stations, got %d trains %d stations", len(line.Trains), len(line.Stations))
	}

	oedo, found := s.Line("odpt.Railway:Toei.Oedo")
	if !found {
		t.Fatal("Expected an error-only snapshot for a line that never succeeded")
	}
	if oedo.Error != "timeout" || len(oedo.Stations) != 0 {
		t.Errorf("Unexpected snapshot %+v", oedo)
	}

	third := s.BeginCycle()
	s.Commit(third, Update{Lines: []LineResult{{Railway: mita, Stations: testStations()}}})
	line, _ = s.Line(mita)
	if line.Error != "" {
		t.Errorf("Expected error to clear after a good cycle, got %q", line.Error)
	}
}

func TestInfoErrors(t *testing.T) {
	s := NewStore()
	op := "odpt.Operator:JR-East"

	s.Commit(s.BeginCycle(), Update{InfoErrors: map[string]error{op: errors.New("no key")}})
	if s.InfoError(op) != "no key" {
		t.Errorf("Expected info error, got %q", s.InfoError(op))
	}

	s.Commit(s.BeginCycle(), Update{Infos: map[string][]models.OperationInfo{op: {{Operator: op}}}})
	if s.InfoError(op) != "" {
		t.Errorf("Expected info error to clear, got %q", s.InfoError(op))
	}
	if len(s.AllInfos()[op]) != 1 {
		t.Errorf("Expected 1 info for %s, got %d", op, len(s.AllInfos()[op]))
	}
}

func TestLinesAreCopies(t *testing.T) {
	s := NewStore()
	s.Commit(s.BeginCycle(), Update{Lines: []LineResult{
		{Railway: "odpt.Railway:Toei.Oedo", Stations: testStations()},
		{Railway: mita, Stations: testStations()},
	}})

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Railway != "odpt.Railway:Toei.Mita" {
		t.Errorf("Expected lines sorted by id, got %s first", lines[0].Railway)
	}

	lines[0].Stations[0].ID = "mutated"
	again, _ := s.Line(mita)
	if again.Stations[0].ID == "mutated" {
		t.Error("Store returned a shared station slice")
	}
}

func TestStationCache(t *testing.T) {
	ctx := context.Background()

	t.Run("write once", func(t *testing.T) {
		s := NewStore()
		calls := 0
		fetch := func(context.Context) ([]models.Station, error) {
			calls++
			st := testStations()
			if calls > 1 {
				st = st[:1]
			}
			return st, nil
		}

		for i := 0; i < 3; i++ {
			got, err := s.Stations(ctx, mita, fetch)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != 3 {
				t.Errorf("Expected the first cached list, got %d stations", len(got))
			}
		}
		if calls != 1 {
			t.Errorf("Expected 1 fetch, got %d", calls)
		}
		cached, ok := s.CachedStations(mita)
		if !ok {
			t.Fatal("Expected cached stations")
		}
		if diff := cmp.Diff(testStations(), cached); diff != "" {
			t.Errorf("Cached stations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty and errors are not cached", func(t *testing.T) {
		s := NewStore()
		calls := 0
		empty := func(context.Context) ([]models.Station, error) {
			calls++
			return nil, nil
		}
		failing := func(context.Context) ([]models.Station, error) {
			calls++
			return nil, errors.New("boom")
		}

		if _, err := s.Stations(ctx, mita, empty); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if _, err := s.Stations(ctx, mita, failing); err == nil {
			t.Error("Expected fetch error to surface")
		}
		if _, err := s.Stations(ctx, mita, empty); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("Expected 3 fetches, got %d", calls)
		}
		if cached, ok := s.CachedStations(mita); ok {
			t.Errorf("Expected empty cache, got %v", cached)
		}
	})

	t.Run("concurrent misses share a fetch", func(t *testing.T) {
		s := NewStore()
		var calls atomic.Int32
		release := make(chan struct{})
		fetch := func(context.Context) ([]models.Station, error) {
			calls.Add(1)
			<-release
			return testStations(), nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Stations(ctx, mita, fetch); err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}()
		}

		// Let the goroutines pile up on the in-flight call
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if calls.Load() != 1 {
			t.Errorf("Expected 1 fetch, got %d", calls.Load())
		}
	})
}
