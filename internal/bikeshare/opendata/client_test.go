package opendata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationsFixture = `[
  {"id": "12", "nombre": "Parque Berrío", "lat": "6.2500", "lon": "-75.5683", "municipio": "Medellín", "tipo": "Manual"},
  {"codigo": 31, "estacion": "Exposiciones", "latitude": 6.227, "longitude": -75.57, "ciudad": "Medellín", "tipo_estacion": "Automática"},
  {"objectid": "7", "nombre_estacion": "Envigado", "y": "6.1710", "x": "-75.5870"},
  {"id": "99", "nombre": "Sin coordenadas"},
  {"id": "100", "nombre": "Fuera de rango", "lat": "123.0", "lon": "-75.5"},
  {"id": "101", "nombre": "Texto", "lat": "n/a", "lon": "-75.5"}
]`

type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

func TestClient_Stations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/hmuf-kqju.json", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("$limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stationsFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		URL:        server.URL + "/resource/hmuf-kqju.json",
		Limit:      50,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})

	stations, err := client.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 3)

	assert.Equal(t, "12", stations[0].ID)
	assert.Equal(t, "Parque Berrío", stations[0].Name)
	assert.InDelta(t, 6.25, stations[0].Location.Lat, 1e-9)
	assert.Equal(t, "Medellín", stations[0].Municipality)
	assert.Equal(t, "Manual", stations[0].Type)

	assert.Equal(t, "31", stations[1].ID)
	assert.Equal(t, "Exposiciones", stations[1].Name)
	assert.Equal(t, "Automática", stations[1].Type)

	assert.Equal(t, "7", stations[2].ID)
	assert.Equal(t, "Envigado", stations[2].Name)
	assert.InDelta(t, -75.587, stations[2].Location.Lon, 1e-9)
	assert.Empty(t, stations[2].Municipality)
}

func TestClient_Stations_DefaultLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("$limit"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		URL:        server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})

	stations, err := client.Stations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestClient_Stations_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, ``},
		{"not an array", http.StatusOK, `{"error": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				URL:        server.URL,
				HTTPClient: &mockHTTPClient{client: server.Client()},
				Logger:     zerolog.Nop(),
			})

			_, err := client.Stations(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFirstString_PrefersEarlierAlias(t *testing.T) {
	row := map[string]any{"codigo": "B", "id": "A"}
	assert.Equal(t, "A", firstString(row, idKeys))

	row = map[string]any{"id": "", "codigo": "B"}
	assert.Equal(t, "B", firstString(row, idKeys))
}
