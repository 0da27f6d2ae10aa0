package framesync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/hubframe/idgen"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/wire"
)

func TestBeacon_PostsPayload(t *testing.T) {
	var mu sync.Mutex
	var got BeaconPayload
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o, ok := origin.Parse(srv.URL)
	require.True(t, ok)
	fixed := time.UnixMilli(1700000000123)
	b := NewBeacon(o, "", WithBeaconClock(func() time.Time { return fixed }), WithBeaconIDs(idgen.Sequence("hr")))

	b.Send(wire.NewHeightReport(2200, true))
	b.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, DefaultReportPath, path)
	assert.Equal(t, BeaconPayload{ID: "hr-1", Height: 2200, IsExpanded: true, TS: "1700000000123"}, got)
}

func TestBeacon_NoRetryOnFailure(t *testing.T) {
	// WHAT: a 500 response is logged and the report is not resent.
	// WHY: the beacon is best-effort; retries would reorder reports.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, _ := origin.Parse(srv.URL)
	b := NewBeacon(o, "/report")
	b.Send(wire.NewHeightReport(1, false))
	b.Wait()
	require.Equal(t, int32(1), hits.Load())
}

func TestBeacon_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	o, _ := origin.Parse(srv.URL)
	srv.Close()

	b := NewBeacon(o, "/report", WithBeaconClient(&http.Client{Timeout: 200 * time.Millisecond}))
	require.NotPanics(t, func() {
		b.Send(wire.NewHeightReport(1, false))
		b.Wait()
	})
}

func TestBeacon_UnknownOriginInert(t *testing.T) {
	b := NewBeacon(origin.Unknown, "")
	require.Empty(t, b.Endpoint())
	b.Send(wire.NewHeightReport(1, false))
	b.Wait()
}

func TestBeacon_RateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	o, _ := origin.Parse(srv.URL)
	b := NewBeacon(o, "/r", WithBeaconLimit(0.001, 3))
	for i := 0; i < 10; i++ {
		b.Send(wire.NewHeightReport(i, false))
	}
	b.Wait()
	require.Equal(t, int32(3), hits.Load())
}

func TestChannel_MirrorsToBeacon(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	o, _ := origin.Parse(srv.URL)
	b := NewBeacon(o, "")
	rec := &recorder{}
	ch := NewChannel(Config{Origin: o}, rec, WithBeacon(b))

	ch.ReportHeight(640, false)
	b.Wait()

	require.Len(t, rec.all(), 1)
	require.Equal(t, int32(1), hits.Load())
}
