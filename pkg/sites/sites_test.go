package sites

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamscout/internal/cache"
	"streamscout/internal/config"
	"streamscout/pkg/browser"
	"streamscout/pkg/extract"
	"streamscout/pkg/fetch"
	"streamscout/pkg/schedule"
)

const testUA = "Mozilla/5.0 Test"

func newFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Config{Timeout: 5 * time.Second, UserAgent: testUA, MaxRetries: 1}, nil)
}

type fakeCapturer struct {
	calls  int32
	result *browser.Result
	err    error
}

func (f *fakeCapturer) Capture(_ context.Context, embedURL string, opts browser.Options) (*browser.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	if result.Referer == "" {
		result.Referer = embedURL
	}
	return &result, nil
}

// newEmbedSite serves /embed (iframe to /player), /player (obfuscated
// manifest) and /empty (nothing).
func newEmbedSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><iframe src="/player?id=7"></iframe></body></html>`)
	})
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		encoded := base64.StdEncoding.EncodeToString([]byte(server.URL + "/hls/live/master.m3u8"))
		fmt.Fprintf(w, `<script>var player = new Clappr.Player({source: atob("%s")});</script>`, encoded)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>offline</body></html>`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolverFollowsIframes(t *testing.T) {
	site := newEmbedSite(t)
	mem := cache.NewMemory()
	resolver := NewResolver(newFetcher(), nil, mem, ResolverConfig{CacheTTL: time.Hour, MaxIframeDepth: 3, UserAgent: testUA})

	stream, err := resolver.Resolve(context.Background(), Request{Key: "test:one", URL: site.URL + "/embed", Referer: site.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/hls/live/master.m3u8", stream.URL)
	assert.Equal(t, site.URL+"/player?id=7", stream.Referer)
	assert.Equal(t, site.URL, stream.Origin)
	assert.Equal(t, testUA, stream.UserAgent)

	cached, err := mem.Get(context.Background(), "test:one")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, *stream, *cached)
}

func TestResolverDepthLimit(t *testing.T) {
	site := newEmbedSite(t)
	resolver := NewResolver(newFetcher(), nil, nil, ResolverConfig{MaxIframeDepth: 0})

	_, err := resolver.Resolve(context.Background(), Request{URL: site.URL + "/embed"})
	assert.ErrorIs(t, err, extract.ErrNoStream)
}

func TestResolverCacheHit(t *testing.T) {
	mem := cache.NewMemory()
	want := Stream{URL: "https://cdn.example/cached/index.m3u8", Referer: "https://embed.example/"}
	require.NoError(t, mem.Set(context.Background(), "test:cached", want, time.Hour))

	resolver := NewResolver(newFetcher(), nil, mem, ResolverConfig{CacheTTL: time.Hour})
	stream, err := resolver.Resolve(context.Background(), Request{Key: "test:cached", URL: "http://127.0.0.1:1/unreachable"})
	require.NoError(t, err)
	assert.Equal(t, want, *stream)
}

func TestResolverBrowserModes(t *testing.T) {
	site := newEmbedSite(t)
	capturer := &fakeCapturer{result: &browser.Result{
		URL:       "https://cdn.example/captured/index.m3u8",
		Origin:    "https://embed.example",
		UserAgent: testUA,
	}}
	resolver := NewResolver(newFetcher(), capturer, nil, ResolverConfig{MaxIframeDepth: 3})
	ctx := context.Background()

	stream, err := resolver.Resolve(ctx, Request{URL: site.URL + "/empty", Browser: BrowserFallback})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/captured/index.m3u8", stream.URL)
	assert.Equal(t, site.URL+"/empty", stream.Referer)
	assert.EqualValues(t, 1, atomic.LoadInt32(&capturer.calls))

	_, err = resolver.Resolve(ctx, Request{URL: site.URL + "/empty", Browser: BrowserOff})
	assert.ErrorIs(t, err, extract.ErrNoStream)
	assert.EqualValues(t, 1, atomic.LoadInt32(&capturer.calls))

	stream, err = resolver.Resolve(ctx, Request{URL: site.URL + "/embed", Browser: BrowserFirst})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/captured/index.m3u8", stream.URL)
	assert.EqualValues(t, 2, atomic.LoadInt32(&capturer.calls))

	capturer.err = browser.ErrDisabled
	stream, err = resolver.Resolve(ctx, Request{URL: site.URL + "/embed", Browser: BrowserFirst})
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/hls/live/master.m3u8", stream.URL)
}

func TestHattrickEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<button><a href="sport1.htm">Sky Sport 1 HD</a></button>
			<button><a href="/sport1b.htm">Sky Sport Uno (backup)</a></button>
			<button><a href="calcio.htm">Sky Calcio</a></button>
			<button><a href="eurosport2.htm">Eurosport 2 HD</a></button>
			<button><a href="info.html">Info</a></button>
		</body></html>`)
	}))
	defer server.Close()

	h := NewHattrick(newFetcher(), nil, HattrickConfig{BaseURL: server.URL + "/", Group: "Sky Sport IPTV"})
	events, err := h.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	uno := events[0]
	assert.Equal(t, "sky-sport-uno", uno.Slug)
	assert.Equal(t, "Sky Sport Uno", uno.Title)
	assert.Equal(t, "Sky Sport IPTV", uno.Group)
	require.Len(t, uno.Links, 2)
	assert.Equal(t, server.URL+"/sport1.htm", uno.Links[0].URL)
	assert.Equal(t, server.URL+"/sport1b.htm", uno.Links[1].URL)
	assert.Equal(t, "hattrick:sky sport uno", uno.cacheKey())

	assert.Equal(t, "Sky Sport Calcio", events[1].Title)
	assert.Equal(t, "eurosport-2", events[2].Slug)
}

const daddySchedule = `{
  "Saturday 18th Oct 2025 - Schedule Time UK GMT": {
    "Soccer": [
      {
        "time": "19:45",
        "event": "England Premier League : Arsenal vs Fulham",
        "channels": [{"channel_name": "Sky Sports Main Event", "channel_id": "38"}],
        "channels2": {"0": {"channel_name": "DAZN 1", "channel_id": 77}}
      }
    ],
    "Tennis": [
      {"time": "10:00", "event": "ATP Vienna", "channels": [{"channel_name": "Tennis TV", "channel_id": "5"}]}
    ]
  }
}`

func TestDaddyliveEvents(t *testing.T) {
	var referer atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer.Store(r.Header.Get("Referer"))
		assert.Equal(t, "/schedule/schedule-generated.json", r.URL.Path)
		fmt.Fprint(w, daddySchedule)
	}))
	defer server.Close()

	london, err := schedule.LoadLocation("Europe/London")
	require.NoError(t, err)

	d := NewDaddylive(newFetcher(), nil, DaddyliveConfig{
		BaseURL:      server.URL + "/",
		SchedulePath: "/schedule/schedule-generated.json",
		EmbedPath:    "/stream/stream-{id}.php",
		Location:     london,
		Categories:   []string{"soccer"},
	})

	events, err := d.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, server.URL+"/", referer.Load())

	first := events[0]
	assert.Equal(t, "england-premier-league-arsenal-vs-fulham-38", first.Slug)
	assert.Equal(t, "England Premier League : Arsenal vs Fulham (Sky Sports Main Event)", first.Title)
	assert.Equal(t, time.Date(2025, time.October, 18, 18, 45, 0, 0, time.UTC), first.Start)
	assert.Equal(t, server.URL+"/stream/stream-38.php", first.Links[0].URL)
	assert.Equal(t, "daddylive:channel-38", first.cacheKey())

	assert.Equal(t, server.URL+"/stream/stream-77.php", events[1].Links[0].URL)
}

func TestDaddyliveUnnamedChannel(t *testing.T) {
	d := NewDaddylive(newFetcher(), nil, DaddyliveConfig{BaseURL: "https://daddy.example", EmbedPath: "/stream/stream-{id}.php"})
	item := scheduleItem{
		Time:     "20:00",
		Event:    "Serie A : Juventus vs Inter",
		Channels: json.RawMessage(`[{"channel_name": "", "channel_id": "12"}]`),
	}

	events := d.itemEvents(time.Date(2025, time.October, 18, 0, 0, 0, 0, time.UTC), "Soccer", item)
	require.Len(t, events, 1)
	assert.Equal(t, "Serie A : Juventus vs Inter", events[0].Title)
	assert.Equal(t, "serie-a-juventus-vs-inter-12", events[0].Slug)
}

func TestDaddyliveBadSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer server.Close()

	d := NewDaddylive(newFetcher(), nil, DaddyliveConfig{BaseURL: server.URL, SchedulePath: "/s.json", EmbedPath: "/e/{id}"})
	_, err := d.Events(context.Background())
	assert.ErrorContains(t, err, "failed to decode schedule")
}

const agendaPage = `<html><body><table class="agenda"><tbody>
<tr class="day"><td colspan="4">sábado 18 de octubre de 2025</td></tr>
<tr>
  <td>21:00</td><td>Fútbol</td><td>Primera División</td><td>Real Madrid - Barcelona</td>
  <td><a href="/canal/1">Canal 1</a> <a href="https://other.example/c2">Canal 2</a></td>
</tr>
<tr><td>22:00</td><td>Tenis</td><td>ATP</td><td>Sin enlaces</td><td></td></tr>
</tbody></table></body></html>`

func TestAgendaEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUA, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, agendaPage)
	}))
	defer server.Close()

	madrid, err := schedule.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	a := NewAgenda(nil, nil, AgendaConfig{
		URL:         server.URL + "/agenda",
		RowSelector: "table.agenda tbody tr",
		Location:    madrid,
		UserAgent:   testUA,
	})
	events, err := a.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "Real Madrid - Barcelona", event.Title)
	assert.Equal(t, "Football", event.Sport)
	assert.Equal(t, "LaLiga", event.Competition)
	assert.Equal(t, "LaLiga", event.Group)
	assert.Equal(t, time.Date(2025, time.October, 18, 19, 0, 0, 0, time.UTC), event.Start)
	assert.Equal(t, "real-madrid-barcelona-1018-2100", event.Slug)
	require.Len(t, event.Links, 2)
	assert.Equal(t, server.URL+"/canal/1", event.Links[0].URL)
	assert.Equal(t, "https://other.example/c2", event.Links[1].URL)
	assert.Equal(t, server.URL+"/agenda", event.Links[0].Referer)
}

func TestAgendaRetriesThenFails(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	a := NewAgenda(nil, nil, AgendaConfig{URL: server.URL, RowSelector: "tr", MaxRetries: 2})
	_, err := a.Events(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestGenericEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ul>
			<li class="match"><span class="t">20:45</span><b>Juventus   Inter</b><a class="go" href="/watch/juve">Watch</a><img src="/logo.png"></li>
			<li class="match"><b>No link</b></li>
			<li class="match"><span class="t">soon</span><b>Milan Roma</b><a class="go" href="https://embed.example/milan">Watch</a></li>
		</ul>`)
	}))
	defer server.Close()

	rome, err := schedule.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	g := NewGeneric(newFetcher(), nil, GenericConfig{
		Name:          "calcio",
		URL:           server.URL + "/list",
		ItemSelector:  "li.match",
		TitleSelector: "b",
		TimeSelector:  ".t",
		Location:      rome,
		LinkSelector:  "a.go",
		LogoSelector:  "img",
		Group:         "Serie A",
	})
	g.now = func() time.Time { return time.Date(2025, time.October, 18, 10, 0, 0, 0, time.UTC) }

	events, err := g.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "juventus-inter", events[0].Slug)
	assert.Equal(t, "Juventus Inter", events[0].Title)
	assert.Equal(t, "calcio", events[0].Site)
	assert.Equal(t, "Serie A", events[0].Group)
	assert.Equal(t, server.URL+"/logo.png", events[0].Logo)
	assert.Equal(t, server.URL+"/watch/juve", events[0].Links[0].URL)
	assert.Equal(t, time.Date(2025, time.October, 18, 18, 45, 0, 0, time.UTC), events[0].Start)

	assert.True(t, events[1].Start.IsZero())
	assert.Equal(t, "https://embed.example/milan", events[1].Links[0].URL)
}

type fakeSite struct {
	name   string
	events []Event
	err    error
}

func (f *fakeSite) Name() string { return f.name }

func (f *fakeSite) Events(context.Context) ([]Event, error) { return f.events, f.err }

func (f *fakeSite) Resolve(_ context.Context, event Event) (*Stream, error) {
	return &Stream{URL: "https://" + f.name + ".example/" + event.Slug + ".m3u8"}, nil
}

func TestMultiSiteEvents(t *testing.T) {
	one := &fakeSite{name: "one", events: []Event{{Slug: "a", Site: "one"}, {Slug: "b", Site: "one"}}}
	two := &fakeSite{name: "two", events: []Event{{Slug: "b", Site: "two"}, {Slug: "c", Site: "two"}, {Site: "two"}}}
	broken := &fakeSite{name: "broken", err: errors.New("broken: timeout")}

	multi := NewMultiSite(one, broken, two)
	events, err := multi.Events(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: timeout")

	require.Len(t, events, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{events[0].Slug, events[1].Slug, events[2].Slug})
	assert.Equal(t, "one", events[1].Site)

	stream, err := multi.Resolve(context.Background(), events[2])
	require.NoError(t, err)
	assert.Equal(t, "https://two.example/c.m3u8", stream.URL)

	_, err = multi.Resolve(context.Background(), Event{Slug: "x", Site: "nope"})
	assert.Error(t, err)
}

func TestNewMultiSiteWithConfig(t *testing.T) {
	cfg := &config.Config{
		Fetch: config.FetchConfig{Timeout: time.Second, UserAgent: testUA, MaxRetries: 1},
		Sites: config.SitesConfig{
			Enabled:   []string{"hattrick", "daddylive", "generic"},
			Hattrick:  config.HattrickConfig{BaseURL: "https://hattrick.example/"},
			Daddylive: config.DaddyliveConfig{BaseURL: "https://daddy.example", SchedulePath: "/s.json", EmbedPath: "/e/{id}", Timezone: "Europe/London"},
			Generic: []config.GenericSiteConfig{
				{Name: "calcio", URL: "https://calcio.example", ItemSelector: "li"},
				{Name: "rugby", URL: "https://rugby.example", ItemSelector: "li"},
			},
		},
	}
	deps := Deps{Fetcher: newFetcher()}

	multi, err := NewMultiSiteWithConfig(cfg, deps, nil)
	require.NoError(t, err)
	var names []string
	for _, site := range multi.Sites() {
		names = append(names, site.Name())
	}
	assert.Equal(t, []string{"hattrick", "daddylive", "calcio", "rugby"}, names)

	multi, err = NewMultiSiteWithConfig(cfg, deps, []string{"rugby", "daddylive"})
	require.NoError(t, err)
	require.Len(t, multi.Sites(), 2)
	assert.Equal(t, "daddylive", multi.Sites()[0].Name())
	assert.Equal(t, "rugby", multi.Sites()[1].Name())

	_, err = NewMultiSiteWithConfig(cfg, deps, []string{"agenda"})
	assert.Error(t, err)
}
