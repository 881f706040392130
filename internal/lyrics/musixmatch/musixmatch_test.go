package musixmatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/skald/internal/lyrics"
)

func wrap(statusCode int, body any) string {
	raw, _ := json.Marshal(body)
	return fmt.Sprintf(`{"message":{"header":{"status_code":%d},"body":%s}}`, statusCode, raw)
}

func newServer(t *testing.T, track, subtitle, richsync string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/matcher.track.get", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sekrit", r.URL.Query().Get("usertoken"))
		fmt.Fprint(w, track)
	})
	mux.HandleFunc("/track.subtitle.get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, subtitle)
	})
	mux.HandleFunc("/track.richsync.get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, richsync)
	})
	return httptest.NewServer(mux)
}

func TestFetchWordSynced(t *testing.T) {
	track := wrap(200, map[string]any{"track": map[string]any{
		"track_id": 42, "track_name": "Windowlicker", "artist_name": "Aphex Twin",
		"track_length": 369.0, "has_subtitles": 1, "has_richsync": 1,
	}})
	subtitle := wrap(200, map[string]any{"subtitle": map[string]any{
		"subtitle_body": "[00:12.00] first line\n[00:15.00] second line",
	}})
	rich := `[{"ts":12.0,"te":14.5,"l":[{"c":"first","o":0},{"c":" ","o":0.5},{"c":"line","o":0.6}],"x":"first line"}]`
	richsync := wrap(200, map[string]any{"richsync": map[string]any{"richsync_body": rich}})

	srv := newServer(t, track, subtitle, richsync)
	defer srv.Close()

	p := New(srv.URL, "sekrit")
	cand, err := p.Fetch(context.Background(), lyrics.Request{Artist: "Aphex Twin", Title: "Windowlicker"})

	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.True(t, cand.Synced())
	assert.True(t, cand.WordSynced())

	require.Len(t, cand.Lines, 2)
	assert.InDelta(t, 12.0, cand.Lines[0].Time, 1e-9)

	// blank fragments are dropped, offsets are relative to the row start
	require.Len(t, cand.Words, 2)
	assert.Equal(t, "first", cand.Words[0].Text)
	assert.InDelta(t, 12.0, cand.Words[0].Time, 1e-9)
	assert.InDelta(t, 0.5, cand.Words[0].Duration, 1e-9)
	assert.Equal(t, "line", cand.Words[1].Text)
	assert.InDelta(t, 12.6, cand.Words[1].Time, 1e-9)
	assert.InDelta(t, 1.9, cand.Words[1].Duration, 1e-9)
}

func TestFetchLineOnlyWhenNoRichsync(t *testing.T) {
	track := wrap(200, map[string]any{"track": map[string]any{
		"track_id": 7, "track_name": "Avril 14th", "artist_name": "Aphex Twin",
		"has_subtitles": 1, "has_richsync": 0,
	}})
	subtitle := wrap(200, map[string]any{"subtitle": map[string]any{
		"subtitle_body": "[00:05.00] only line",
	}})

	srv := newServer(t, track, subtitle, "")
	defer srv.Close()

	p := New(srv.URL, "sekrit")
	cand, err := p.Fetch(context.Background(), lyrics.Request{Artist: "Aphex Twin", Title: "Avril 14th"})

	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.True(t, cand.Synced())
	assert.False(t, cand.WordSynced())
}

func TestFetchInstrumentalSkipsLyricsCalls(t *testing.T) {
	track := wrap(200, map[string]any{"track": map[string]any{
		"track_id": 9, "track_name": "Rhubarb", "artist_name": "Aphex Twin", "instrumental": 1,
	}})

	mux := http.NewServeMux()
	mux.HandleFunc("/matcher.track.get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, track)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to %s", r.URL.Path)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(srv.URL, "sekrit")
	cand, err := p.Fetch(context.Background(), lyrics.Request{Artist: "Aphex Twin", Title: "Rhubarb"})

	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.True(t, cand.Instrumental)
}

func TestFetchMissOn404Header(t *testing.T) {
	srv := newServer(t, wrap(404, map[string]any{}), "", "")
	defer srv.Close()

	p := New(srv.URL, "sekrit")
	cand, err := p.Fetch(context.Background(), lyrics.Request{Artist: "Nobody", Title: "Nothing"})

	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestFetchWithoutTokenErrors(t *testing.T) {
	p := New("http://localhost:0", "")

	_, err := p.Fetch(context.Background(), lyrics.Request{Artist: "a", Title: "b"})
	assert.ErrorContains(t, err, "token")
}
