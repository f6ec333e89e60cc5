package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusunglee/railboard/internal/board"
	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/internal/render"
	"github.com/jusunglee/railboard/pkg/railboard"
)

// MockClient implements railboard.Client for testing
type MockClient struct {
	cat       *catalog.Catalog
	snapshots map[string]models.LineSnapshot
	selection board.Selection
	updated   time.Time
	lastScene railboard.SceneOptions
}

func newMockClient(t *testing.T) *MockClient {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	return &MockClient{
		cat: cat,
		snapshots: map[string]models.LineSnapshot{
			"odpt.Railway:Toei.Mita": {
				Railway: "odpt.Railway:Toei.Mita",
				Stations: []models.Station{
					{ID: "odpt.Station:Toei.Mita.Meguro", StationTitle: models.LocalizedText{Ja: "目黒"}},
					{ID: "odpt.Station:Toei.Mita.Shirokanedai", StationTitle: models.LocalizedText{Ja: "白金台"}},
					{ID: "odpt.Station:Toei.Mita.Mita", StationTitle: models.LocalizedText{Ja: "三田"}},
				},
				Trains: []models.Train{
					{ID: "t1", FromStationID: "odpt.Station:Toei.Mita.Meguro", ToStationID: "odpt.Station:Toei.Mita.Shirokanedai", Direction: models.Outbound},
					{ID: "t2", FromStationID: "odpt.Station:Toei.Oedo.Roppongi", Direction: models.Inbound},
				},
				UpdatedAt: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
				Error:     "HTTP 503",
			},
		},
		updated: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
	}
}

func (m *MockClient) GetRailways() []catalog.Railway {
	return m.cat.Railways()
}

func (m *MockClient) GetLine(railway string) (railboard.Line, error) {
	rw, err := m.cat.Railway(railway)
	if err != nil {
		return railboard.Line{}, err
	}
	snap, ok := m.snapshots[rw.ID]
	if !ok {
		return railboard.Line{}, fmt.Errorf("%w: %s", railboard.ErrNoData, rw.ID)
	}
	return railboard.Line{Railway: rw, Snapshot: snap}, nil
}

func (m *MockClient) GetScene(railway string, opts railboard.SceneOptions) (*render.Scene, error) {
	m.lastScene = opts
	line, err := m.GetLine(railway)
	if err != nil {
		return nil, err
	}
	ro := render.DefaultOptions(m.cat)
	if opts.Width > 0 {
		ro.Layout.Width = opts.Width
	}
	return render.Build(render.Line{
		Railway:   line.Railway,
		Stations:  line.Snapshot.Stations,
		Trains:    line.Snapshot.Trains,
		UpdatedAt: line.Snapshot.UpdatedAt,
		Error:     line.Snapshot.Error,
	}, ro)
}

func (m *MockClient) GetServiceInfo() map[string][]models.OperationInfo {
	return map[string][]models.OperationInfo{
		"odpt.Operator:Toei": {{Railway: "odpt.Railway:Toei.Asakusa", Operator: "odpt.Operator:Toei", Status: models.StatusDelay, Text: "押上駅で遅れ"}},
	}
}

func (m *MockClient) GetBoard() railboard.Board {
	b := railboard.Board{
		Groups:    board.Build(m.cat, m.GetServiceInfo()),
		Selection: m.selection,
	}
	if entry, ok := board.Selected(b.Groups, b.Selection); ok && entry.Info != nil {
		stations := []models.Station{
			{ID: "odpt.Station:Toei.Asakusa.Oshiage", StationTitle: models.LocalizedText{Ja: "押上"}},
		}
		names := []string{render.StationName(stations[0], m.cat)}
		b.Notice = board.Highlight(entry.Info.Text, names)
	}
	return b
}

func (m *MockClient) SelectBoardGroup(index int) (board.Selection, error) {
	if index < 0 || index >= len(m.cat.Groups()) {
		return m.selection, fmt.Errorf("group %d out of range", index)
	}
	m.selection = board.Selection{Group: index}
	return m.selection, nil
}

func (m *MockClient) GetLastUpdate() time.Time {
	return m.updated
}

func newTestServer(t *testing.T) (*MockClient, *mux.Router) {
	client := newMockClient(t)
	r := mux.NewRouter()
	NewHandler(client).RegisterRoutes(r)
	return client, r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestIndexAndHealth(t *testing.T) {
	_, r := newTestServer(t)

	rec := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "railboard")

	rec = serve(r, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "2024-05-01T03:00:00Z", health["updated"])
}

func TestRailways(t *testing.T) {
	client, r := newTestServer(t)

	rec := serve(r, http.MethodGet, "/railways")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []catalog.Railway `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, len(client.cat.Railways()))
}

func TestRailway(t *testing.T) {
	_, r := newTestServer(t)

	rec := serve(r, http.MethodGet, "/railways/Toei.Mita")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.LineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "odpt.Railway:Toei.Mita", resp.Railway)
	assert.Len(t, resp.Stations, 3)
	require.Len(t, resp.Placements, 1)
	assert.Equal(t, "t1", resp.Placements[0].TrainID)
	assert.InDelta(t, 0.25, resp.Placements[0].Scalar, 1e-9)
	assert.Equal(t, []string{"t2"}, resp.Unresolved)
	assert.Equal(t, "HTTP 503", resp.Error, "stale data carries the last error")

	full := serve(r, http.MethodGet, "/railways/odpt.Railway:Toei.Mita")
	assert.Equal(t, http.StatusOK, full.Code)
}

func TestRailwayErrors(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown railway", "/railways/Nowhere.Line", http.StatusNotFound},
		{"no data yet", "/railways/Toei.Oedo", http.StatusServiceUnavailable},
		{"unknown render", "/render/Nowhere.Line", http.StatusNotFound},
		{"bad width", "/render/Toei.Mita?width=wide", http.StatusBadRequest},
		{"negative width", "/render/Toei.Mita?width=-5", http.StatusBadRequest},
		{"bad stations per row", "/render/Toei.Mita?maxStationsPerRow=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRender(t *testing.T) {
	client, r := newTestServer(t)

	rec := serve(r, http.MethodGet, "/render/Toei.Mita?width=1280&maxStationsPerRow=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"), "body should be an svg document")
	assert.Contains(t, rec.Body.String(), "目黒")
	assert.Equal(t, railboard.SceneOptions{Width: 1280, MaxStationsPerRow: 2}, client.lastScene)
}

func TestAlertsAndBoard(t *testing.T) {
	_, r := newTestServer(t)

	rec := serve(r, http.MethodGet, "/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "odpt.Operator:Toei")

	rec = serve(r, http.MethodPost, "/board/group/1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/board")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data railboard.Board `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Selection.Group)
	require.NotEmpty(t, resp.Data.Groups)
	assert.Equal(t, []board.Part{
		{Text: "押上", Highlighted: true},
		{Text: "駅で遅れ"},
	}, resp.Data.Notice)

	rec = serve(r, http.MethodPost, "/board/group/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(r, http.MethodPost, "/board/group/first")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(r, http.MethodGet, "/board/group/1")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
