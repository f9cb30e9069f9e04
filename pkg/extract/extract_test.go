package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindStreams(t *testing.T) {
	page := `<script>
var a = "https:\/\/cdn.example.com\/live\/master.m3u8?token=abc";
player.setup({file: '/hls/ch1/index.m3u8'});
</script>
<video src="//edge.example.net/x/stream.mpd"></video>
<a href="https://cdn.example.com/live/master.m3u8?token=abc">again</a>`

	assert.Equal(t, []string{
		"https://cdn.example.com/live/master.m3u8?token=abc",
		"https://edge.example.net/x/stream.mpd",
		"/hls/ch1/index.m3u8",
	}, FindStreams(page))

	assert.Empty(t, FindStreams("<html>nothing here</html>"))
}

func TestFindStreamsExtensionInHost(t *testing.T) {
	assert.Equal(t, []string{"https://edge.mpdcdn.net/live/ch1/index.m3u8?token=abc"},
		FindStreams("https://edge.mpdcdn.net/live/ch1/index.m3u8?token=abc"))

	assert.Equal(t, []string{"https://cdn.m3u8.example/a.mpd/hls/index.m3u8"},
		FindStreams(`<source src="https://cdn.m3u8.example/a.mpd/hls/index.m3u8">`))

	assert.Empty(t, FindStreams("https://edge.mpdcdn.net/live/ch1/player.php"))
}

func TestResolve(t *testing.T) {
	base := "https://site.example/watch/page.html"

	got, err := Resolve(base, "../embed/1.php")
	require.NoError(t, err)
	assert.Equal(t, "https://site.example/embed/1.php", got)

	got, err = Resolve(base, "//cdn.example/x.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.m3u8", got)

	got, err = Resolve("", "http://abs.example/a")
	require.NoError(t, err)
	assert.Equal(t, "http://abs.example/a", got)

	_, err = Resolve("", "/relative")
	assert.Error(t, err)
}

func TestIsPotentialStream(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://x.example/a/index.m3u8", true},
		{"https://x.example/live.mpd", true},
		{"https://planetary.lovecdn.ru/sky/embed?token=1", true},
		{"https://cdn.example/hls/index", true},
		{"https://cdn.example/player.js?token=abc", false},
		{"https://example.com/about", false},
		{"https://ads.example/banner.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPotentialStream(tt.url))
		})
	}
}

func TestTokenManifest(t *testing.T) {
	got, err := TokenManifest("https://planetary.lovecdn.ru/skyuno/embed.html?token=abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://planetary.lovecdn.ru/skyuno/index.m3u8?token=abc123", got)

	got, err = TokenManifest("https://x.example/a/index.m3u8?token=1")
	require.NoError(t, err)
	assert.Equal(t, "https://x.example/a/index.m3u8?token=1", got)

	got, err = TokenManifest("https://x.example/page")
	require.NoError(t, err)
	assert.Equal(t, "https://x.example/page", got)
}

func TestFindIframes(t *testing.T) {
	page := `<html><body>
<iframe src="/embed/ch1.php"></iframe>
<iframe data-src="//player.example/ch2"></iframe>
<iframe src="javascript:void(0)"></iframe>
<script>iframe.src = "https:\/\/other.example\/p\/3";</script>
<script>var cfg = {"embedUrl": "https://emb.example/e/4"};</script>
<iframe src="/embed/ch1.php"></iframe>
</body></html>`

	assert.Equal(t, []string{
		"https://site.example/embed/ch1.php",
		"https://player.example/ch2",
		"https://other.example/p/3",
		"https://emb.example/e/4",
	}, FindIframes(page, "https://site.example/watch/"))
}

func TestDeobfuscate(t *testing.T) {
	page := `<script>
var a = atob("aHR0cHM6Ly9jZG4uZXhhbXBsZS9saXZlL2luZGV4Lm0zdTg=");
var b = "8u3m.retsam/evil/moc.elpmaxe.ndc//:sptth".split("").reverse().join("");
var c = "\x68\x74\x74\x70\x73://a.example/x.m3u8";
var d = decodeURIComponent("https%3A%2F%2Fb.example%2Fy.m3u8");
var e = "https://c.exam" + "ple/z" + ".m3u8";
var f = atob("J2h0dHBzOi8vZC5leGFtcGxlLycgKyAnbi5tM3U4Jw==");
var g = "aHR0cHM6Ly9lLmV4YW1wbGUvby5tM3U4";
</script>`

	streams := FindStreams(Deobfuscate(page))
	for _, want := range []string{
		"https://cdn.example/live/index.m3u8",
		"https://cdn.example.com/live/master.m3u8",
		"https://a.example/x.m3u8",
		"https://b.example/y.m3u8",
		"https://c.example/z.m3u8",
		"https://d.example/n.m3u8",
		"https://e.example/o.m3u8",
	} {
		assert.Contains(t, streams, want)
	}

	assert.Equal(t, "plain text", Deobfuscate("plain text"))
}

func TestDecodeBase64RejectsBinary(t *testing.T) {
	_, ok := decodeBase64("AAECAwQ=")
	assert.False(t, ok)

	got, ok := decodeBase64("aGVsbG8")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestRank(t *testing.T) {
	urls := []string{
		"https://cdn.example/x/720p/index.m3u8",
		"https://cdn.example/x/master.m3u8",
		"https://cdn.example/x/stream.mpd",
		"https://cdn.example/x/playlist.m3u8",
		"https://cdn.example/x/master.m3u8",
	}

	ranked := Rank(urls)
	require.Len(t, ranked, 4)
	assert.Equal(t, "https://cdn.example/x/master.m3u8", ranked[0].URL)
	assert.Equal(t, "https://cdn.example/x/playlist.m3u8", ranked[1].URL)
	assert.Equal(t, "https://cdn.example/x/720p/index.m3u8", ranked[2].URL)
	assert.Equal(t, "https://cdn.example/x/stream.mpd", ranked[3].URL)

	best, ok := Best(urls)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example/x/master.m3u8", best)

	_, ok = Best(nil)
	assert.False(t, ok)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "stream-123", Slug("https://dlhd.example/stream/stream-123.php"))
	assert.Equal(t, "skyuno", Slug("https://cdn.example/skyuno/index.m3u8"))
	assert.Equal(t, "cdn-example", Slug("https://cdn.example/"))
}

func TestSlugFromTitle(t *testing.T) {
	assert.Equal(t, "juventus-vs-internazionale-serie-a", SlugFromTitle("Juventus vs. Internazionale – Serie A"))
	assert.Equal(t, "atletico-madrid", SlugFromTitle("Atlético Madrid"))
	assert.Equal(t, "futbol-2025", SlugFromTitle("  ¡Fútbol! 2025 "))
	assert.Equal(t, "", SlugFromTitle("—"))
}
