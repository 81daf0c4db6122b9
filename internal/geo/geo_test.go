package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bucharest = Point{Lat: 44.4268, Lng: 26.1025}
	cluj      = Point{Lat: 46.7712, Lng: 23.6236}
	ploiesti  = Point{Lat: 44.9365, Lng: 26.0129}
)

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(bucharest, bucharest), 1e-9)
	assert.InDelta(t, 324, Distance(bucharest, cluj), 5)
	assert.InDelta(t, Distance(cluj, bucharest), Distance(bucharest, cluj), 1e-9)

	// one degree of latitude
	assert.InDelta(t, 111.19, Distance(Point{0, 0}, Point{1, 0}), 0.01)
}

func TestSortByDistance(t *testing.T) {
	type station struct {
		name string
		at   Point
	}
	stations := []station{
		{"cluj", cluj},
		{"nowhere", Point{}},
		{"ploiesti", ploiesti},
		{"bucuresti", bucharest},
	}
	loc := func(s station) Point { return s.at }

	ranked := SortByDistance(bucharest, stations, loc, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "bucuresti", ranked[0].Item.name)
	assert.Equal(t, "ploiesti", ranked[1].Item.name)
	assert.Equal(t, "cluj", ranked[2].Item.name)

	assert.Len(t, SortByDistance(bucharest, stations, loc, 2), 2)
}

func TestGeocoder_Forward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Strada Lipscani 1, Bucuresti", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"44.4318","lon":"26.1003","display_name":"Strada Lipscani, Bucuresti"}]`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL+"/", "secret", 0)
	p, err := g.Forward(context.Background(), "Strada Lipscani 1, Bucuresti")
	require.NoError(t, err)
	assert.InDelta(t, 44.4318, p.Lat, 1e-6)
	assert.InDelta(t, 26.1003, p.Lng, 1e-6)
	assert.Equal(t, "Strada Lipscani, Bucuresti", p.DisplayName)
}

func TestGeocoder_ForwardNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewGeocoder(srv.URL, "", 0).Forward(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocoder_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "44.426800", r.URL.Query().Get("lat"))
		if r.URL.Query().Get("lon") == "0.000000" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		_, _ = w.Write([]byte(`{"lat":"44.4268","lon":"26.1025","display_name":"Piata Unirii"}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, "", 0)
	p, err := g.Reverse(context.Background(), bucharest)
	require.NoError(t, err)
	assert.Equal(t, "Piata Unirii", p.DisplayName)

	_, err = g.Reverse(context.Background(), Point{Lat: 44.4268})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocoder_Disabled(t *testing.T) {
	g := NewGeocoder("", "", 0)
	assert.False(t, g.Enabled())
	_, err := g.Forward(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestGeocoder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewGeocoder(srv.URL, "", 0).Forward(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in   string
		want Point
		ok   bool
	}{
		{"44.4268, 26.1025", bucharest, true},
		{" -33.9,18.4 ", Point{Lat: -33.9, Lng: 18.4}, true},
		{"Str. Lipscani 12, Bucuresti", Point{}, false},
		{"91, 10", Point{}, false},
		{"10, 181", Point{}, false},
		{"44.4268", Point{}, false},
	}
	for _, tt := range tests {
		got, ok := ParsePoint(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
