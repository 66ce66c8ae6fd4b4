package kmllive

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

type liveDocument struct {
	Link struct {
		Name            string  `xml:"name"`
		Href            string  `xml:"Link>href"`
		RefreshMode     string  `xml:"Link>refreshMode"`
		RefreshInterval float64 `xml:"Link>refreshInterval"`
	} `xml:"Document>NetworkLink"`
	Placemark struct {
		Name        string `xml:"name"`
		Coordinates string `xml:"Point>coordinates"`
	} `xml:"Document>Placemark"`
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, liveDocument) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()

	p, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var doc liveDocument
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, xml.Unmarshal(p, &doc))
	}
	return resp, doc
}

func TestServer_Entry(t *testing.T) {
	s, err := New(8123)
	require.NoError(t, err)

	resp, doc := get(t, s.Handler(), "/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "Refreshes every 5 seconds", doc.Link.Name)
	assert.Equal(t, "http://127.0.0.1:8123/live/dynamic", doc.Link.Href)
	assert.Equal(t, "onInterval", doc.Link.RefreshMode)
	assert.Equal(t, 5.0, doc.Link.RefreshInterval)
}

func TestServer_Dynamic(t *testing.T) {
	s, err := New(DefaultPort)
	require.NoError(t, err)
	h := s.Handler()

	_, doc := get(t, h, "/live/dynamic")
	assert.Equal(t, "Live location (-10 feet)", doc.Placemark.Name)
	assert.Contains(t, doc.Placemark.Coordinates, "-70.999997,24.999979,")

	require.NoError(t, s.LogPosition(time.Now(), telemetry.Position{Latitude: 47.5, Longitude: -122.25, Altitude: 1500.4, Airspeed: 90}))

	resp, doc := get(t, h, "/live/dynamic")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Live location (1500 feet)", doc.Placemark.Name)
	assert.Contains(t, doc.Placemark.Coordinates, "-122.25,47.5,")
}

func TestServer_NotFound(t *testing.T) {
	s, err := New(DefaultPort)
	require.NoError(t, err)

	for _, path := range []string{"/", "/live/other", "/metrics"} {
		resp, _ := get(t, s.Handler(), path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestServer_StartClose(t *testing.T) {
	s, err := New(0)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestNew_InvalidPort(t *testing.T) {
	_, err := New(70000)
	assert.Error(t, err)
}
