package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo_cache.csv")
	in := Cache{"上海市XX路1号": {Lng: 121.47, Lat: 31.23}}

	require.NoError(t, SaveCache(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\ufeffaddress,lng,lat\n"))

	out, err := LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadCache_Missing(t *testing.T) {
	c, err := LoadCache(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestLoadCache_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo_cache.csv")
	content := "address,lng,lat\n" +
		"上海市A路,121.1,31.1\n" +
		",121.2,31.2\n" +
		"上海市B路,abc,31.3\n" +
		"上海市C路,121.4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, Cache{"上海市A路": {Lng: 121.1, Lat: 31.1}}, c)
}

func TestParseLocation(t *testing.T) {
	c, err := parseLocation("121.473701,31.230416")
	require.NoError(t, err)
	assert.InDelta(t, 121.473701, c.Lng, 1e-9)
	assert.InDelta(t, 31.230416, c.Lat, 1e-9)

	for _, bad := range []string{"", "121.4", "x,31.2", "121.4,y"} {
		_, err := parseLocation(bad)
		assert.ErrorIs(t, err, ErrNoResult, bad)
	}
}

// amapStub answers geocode and place requests from fixed tables.
func amapStub(t *testing.T, geo, poi map[string]string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "上海", q.Get("city"))
		assert.Equal(t, "true", q.Get("citylimit"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/geocode/geo":
			if loc, ok := geo[q.Get("address")]; ok {
				fmt.Fprintf(w, `{"status":"1","count":"1","geocodes":[{"location":%q}]}`, loc)
				return
			}
		case "/v3/place/text":
			if loc, ok := poi[q.Get("keywords")]; ok {
				fmt.Fprintf(w, `{"status":"1","count":"1","pois":[{"location":%q}]}`, loc)
				return
			}
		}
		fmt.Fprint(w, `{"status":"1","count":"0","info":"OK"}`)
	}))
}

func newTestResolver(srv *httptest.Server) *Resolver {
	client := NewClient(ClientConfig{BaseURL: srv.URL, Key: "test-key", City: "上海", Timeout: time.Second})
	r := NewResolver(client, "上海市", DefaultRetries, DefaultDelay)
	r.sleep = noSleep
	return r
}

func TestResolver_GeocodeHit(t *testing.T) {
	srv := amapStub(t, map[string]string{"上海市XX路1号": "121.47,31.23"}, nil, nil)
	defer srv.Close()

	c, stage, err := newTestResolver(srv).Resolve(context.Background(), "上海市XX路1号")
	require.NoError(t, err)
	assert.Equal(t, StageGeocode, stage)
	assert.Equal(t, Coordinate{Lng: 121.47, Lat: 31.23}, c)
}

func TestResolver_FallsBackToPOIWithoutCityPrefix(t *testing.T) {
	var calls int32
	srv := amapStub(t, nil, map[string]string{"人民广场": "121.475,31.228"}, &calls)
	defer srv.Close()

	c, stage, err := newTestResolver(srv).Resolve(context.Background(), "上海市人民广场")
	require.NoError(t, err)
	assert.Equal(t, StagePOI, stage)
	assert.Equal(t, Coordinate{Lng: 121.475, Lat: 31.228}, c)
	// three geocode attempts, then the first place search hits
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestResolver_Miss(t *testing.T) {
	var calls int32
	srv := amapStub(t, nil, nil, &calls)
	defer srv.Close()

	_, stage, err := newTestResolver(srv).Resolve(context.Background(), "上海市不存在路")
	require.NoError(t, err)
	assert.Equal(t, StageMiss, stage)
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestResolver_HTTPErrorsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"1","count":"1","geocodes":[{"location":"121.5,31.2"}]}`)
	}))
	defer srv.Close()

	c, stage, err := newTestResolver(srv).Resolve(context.Background(), "上海市XX路")
	require.NoError(t, err)
	assert.Equal(t, StageGeocode, stage)
	assert.Equal(t, Coordinate{Lng: 121.5, Lat: 31.2}, c)
}

type stageCounter map[string]int

func (s stageCounter) ObserveGeocode(stage string, _ time.Duration) { s[stage]++ }

func TestService_Locate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo_cache.csv")
	require.NoError(t, SaveCache(path, Cache{"上海市缓存路1号": {Lng: 121.1, Lat: 31.1}}))

	var calls int32
	srv := amapStub(t, map[string]string{"上海市新路2号": "121.2,31.2"}, nil, &calls)
	defer srv.Close()

	obs := stageCounter{}
	svc, err := NewService(Config{CachePath: path}, newTestResolver(srv), obs)
	require.NoError(t, err)
	svc.sleep = noSleep

	got, err := svc.Locate(context.Background(), []string{
		"上海市新路2号", "上海市缓存路1号", "上海市新路2号", "上海市无名路", "",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]Coordinate{
		"上海市缓存路1号": {Lng: 121.1, Lat: 31.1},
		"上海市新路2号":  {Lng: 121.2, Lat: 31.2},
	}, got)
	assert.Equal(t, stageCounter{"cache": 1, "geocode": 1, "miss": 1}, obs)

	saved, err := LoadCache(path)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	assert.Contains(t, saved, "上海市新路2号")

	// second run is served from the cache file
	before := atomic.LoadInt32(&calls)
	got, err = svc.Locate(context.Background(), []string{"上海市新路2号"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestService_FlushesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo_cache.csv")
	geo := map[string]string{}
	var addrs []string
	for i := 0; i < 5; i++ {
		a := fmt.Sprintf("上海市测试路%d号", i)
		geo[a] = fmt.Sprintf("121.%d,31.%d", i, i)
		addrs = append(addrs, a)
	}
	srv := amapStub(t, geo, nil, nil)
	defer srv.Close()

	svc, err := NewService(Config{CachePath: path, FlushEvery: 2}, newTestResolver(srv), nil)
	require.NoError(t, err)

	var sizes []int
	svc.sleep = func(context.Context, time.Duration) error {
		c, err := LoadCache(path)
		require.NoError(t, err)
		sizes = append(sizes, len(c))
		return nil
	}

	_, err = svc.Locate(context.Background(), addrs)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 2, 4, 4}, sizes)

	final, err := LoadCache(path)
	require.NoError(t, err)
	assert.Len(t, final, 5)
}

func TestService_CacheOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo_cache.csv")
	require.NoError(t, SaveCache(path, Cache{"上海市A路": {Lng: 1, Lat: 2}}))

	svc, err := NewService(Config{CachePath: path, CacheOnly: true}, nil, nil)
	require.NoError(t, err)

	got, err := svc.Locate(context.Background(), []string{"上海市A路", "上海市B路"})
	require.NoError(t, err)
	assert.Equal(t, map[string]Coordinate{"上海市A路": {Lng: 1, Lat: 2}}, got)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{}, nil, nil)
	assert.Error(t, err)

	_, err = NewService(Config{CachePath: "x.csv"}, nil, nil)
	assert.Error(t, err)
}
