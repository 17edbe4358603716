package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ak74","name":"AK-74"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	body, err := client.Fetch(context.Background(), srv.URL+"/items/ak74.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"ak74","name":"AK-74"}`, string(body))
	require.Contains(t, gotUA, "gamedata-api/")
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	_, err := client.Fetch(context.Background(), srv.URL+"/items/nope.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	_, err := client.Fetch(context.Background(), srv.URL+"/items/ak74.json")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestFetchWithToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main", WithToken("gh-token-123"))

	_, err := client.Fetch(context.Background(), srv.URL+"/contents/items")
	require.NoError(t, err)
	require.Equal(t, "Bearer gh-token-123", gotAuth)
}

// recordingTransport counts the requests routed through it so a test
// can prove an injected client is actually used.
type recordingTransport struct {
	calls int
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.calls++
	return http.DefaultTransport.RoundTrip(req)
}

func TestClientOptions(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	transport := &recordingTransport{}
	client := New(srv.URL, srv.URL, "main",
		WithHTTPClient(&http.Client{Transport: transport}),
		WithUserAgent("raidtools-mirror/2.1"),
	)

	_, err := client.Fetch(context.Background(), srv.URL+"/bots.json")
	require.NoError(t, err)
	require.Equal(t, "raidtools-mirror/2.1", gotUA)
	require.Equal(t, 1, transport.calls, "fetches go through the injected client")
}

func TestURLBuilders(t *testing.T) {
	client := New(
		"https://raw.githubusercontent.com/raidtools/gamedata/main/",
		"https://api.github.com/repos/raidtools/gamedata/contents/",
		"main",
	)

	require.Equal(t,
		"https://raw.githubusercontent.com/raidtools/gamedata/main/bots.json",
		client.FileURL("bots"))
	require.Equal(t,
		"https://raw.githubusercontent.com/raidtools/gamedata/main/items/ak74.json",
		client.FileURL("items/ak74"))
	require.Equal(t,
		"https://api.github.com/repos/raidtools/gamedata/contents/items?ref=main",
		client.ListingURL("items"))
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"m4a1.json","type":"file"},
			{"name":"ak74.json","type":"file"},
			{"name":"AKS74u.json","type":"file"},
			{"name":"attachments","type":"dir"},
			{"name":"_index.json","type":"file"},
			{"name":"README.md","type":"file"}
		]`))
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	ids, err := client.List(context.Background(), srv.URL+"/contents/items")
	require.NoError(t, err)
	require.Equal(t, []string{"ak74", "AKS74u", "m4a1"}, ids,
		"directories, underscore files and non-json files are skipped; ids come back collated")
}

func TestListDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Not a directory"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	_, err := client.List(context.Background(), srv.URL+"/contents/items")
	require.Error(t, err)
	require.ErrorContains(t, err, "decode listing")
}

func TestListUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.URL, "main")

	_, err := client.List(context.Background(), srv.URL+"/contents/items")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.Status)
}
