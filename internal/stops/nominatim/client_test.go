package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const medellinFixture = `[{
  "place_id": 297935826,
  "display_name": "Medellín, Valle de Aburrá, Antioquia, Colombia",
  "lat": "6.2697324",
  "lon": "-75.6025597",
  "boundingbox": ["6.1621170", "6.3754320", "-75.7192000", "-75.4737400"]
}]`

func newTestClient(server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		URL:        server.URL + "/search",
		UserAgent:  "MovilityAI/1.0 (contact: dev@example.com)",
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Medellín, Antioquia, Colombia", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "MovilityAI/1.0 (contact: dev@example.com)", r.UserAgent())
		_, _ = w.Write([]byte(medellinFixture))
	}))
	defer server.Close()

	place, err := newTestClient(server).Search(context.Background(), "Medellín, Antioquia, Colombia")
	require.NoError(t, err)

	assert.InDelta(t, 6.1621170, place.BoundingBox.South, 1e-9)
	assert.InDelta(t, 6.3754320, place.BoundingBox.North, 1e-9)
	assert.InDelta(t, -75.7192000, place.BoundingBox.West, 1e-9)
	assert.InDelta(t, -75.4737400, place.BoundingBox.East, 1e-9)
	assert.InDelta(t, 6.2697324, place.Location.Lat, 1e-9)
	assert.Contains(t, place.DisplayName, "Antioquia")
}

func TestClient_Search_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Search_BadBoundingBox(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `[{"lat":"6.2","lon":"-75.6"}]`},
		{"not numeric", `[{"boundingbox":["a","b","c","d"]}]`},
		{"south above north", `[{"boundingbox":["6.4","6.1","-75.7","-75.4"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server).Search(context.Background(), "Medellín")
			assert.ErrorIs(t, err, ErrInvalidBoundingBox)
		})
	}
}

func TestClient_Search_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "Medellín")
	assert.Error(t, err)
}
