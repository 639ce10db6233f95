package intercept

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func armed() *Interceptor {
	i := New()
	i.Arm()
	return i
}

func TestClassify_AbortsStaticAssets(t *testing.T) {
	urls := []string{
		"https://cdn.example/logo.png",
		"https://cdn.example/video.mp4:1080p.ts/seg1",
		"https://ads.example/banner",
	}

	for _, rt := range []ResourceType{ResourceImage, ResourceStylesheet, ResourceFont} {
		for _, u := range urls {
			d := armed().Classify(Request{URL: u, ResourceType: rt})
			assert.Equal(t, Abort, d.Action, "%s %s", rt, u)
		}
	}
}

func TestClassify_AbortsBareMP4(t *testing.T) {
	i := armed()

	d := i.Classify(Request{URL: "https://cdn.example/poster/trailer.mp4", ResourceType: ResourceMedia})

	assert.Equal(t, Abort, d.Action)
	assert.False(t, i.Done())
}

func TestClassify_CapturesStream(t *testing.T) {
	i := armed()

	d := i.Classify(Request{URL: "https://cdn.example/video.mp4:1080p.ts/seg1", ResourceType: ResourceOther})

	require.Equal(t, Capture, d.Action)
	assert.Equal(t, "https://cdn.example/video.mp4", d.MediaURL)
	assert.True(t, i.Done())

	select {
	case got := <-i.Captured():
		assert.Equal(t, "https://cdn.example/video.mp4", got)
	default:
		t.Fatal("captured URL was not delivered")
	}
}

func TestClassify_ContinuesHarmlessRequests(t *testing.T) {
	i := armed()

	for _, u := range []string{
		"https://site.example/films/981-matrix.html",
		"https://site.example/ajax/get_cdn_series/",
		"https://cdn.example/playlist.m3u8",
	} {
		d := i.Classify(Request{URL: u, ResourceType: ResourceDocument})
		assert.Equal(t, Continue, d.Action, u)
	}
	assert.False(t, i.Done())
}

func TestClassify_SecondCaptureIsIgnored(t *testing.T) {
	i := armed()

	first := i.Classify(Request{URL: "https://cdn.example/a.mp4:hls:manifest.ts", ResourceType: ResourceOther})
	second := i.Classify(Request{URL: "https://cdn.example/b.mp4:hls:manifest.ts", ResourceType: ResourceOther})
	image := i.Classify(Request{URL: "https://cdn.example/logo.png", ResourceType: ResourceImage})

	assert.Equal(t, Capture, first.Action)
	assert.Equal(t, Continue, second.Action)
	// once captured everything passes through untouched
	assert.Equal(t, Continue, image.Action)
}

func TestClassify_ConcurrentCapturesHappenOnce(t *testing.T) {
	i := armed()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		captures int
	)

	for n := 0; n < 64; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := i.Classify(Request{URL: "https://cdn.example/video.mp4:720p.ts/seg", ResourceType: ResourceOther})
			if d.Action == Capture {
				mu.Lock()
				captures++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, captures)
	assert.Len(t, i.Captured(), 1)
}

func TestClassify_DisarmedAbortsStream(t *testing.T) {
	i := New()

	d := i.Classify(Request{URL: "https://cdn.example/video.mp4:360p.ts/seg1", ResourceType: ResourceOther})

	assert.Equal(t, Abort, d.Action)
	assert.False(t, i.Done())

	i.Arm()
	d = i.Classify(Request{URL: "https://cdn.example/video.mp4:1080p.ts/seg1", ResourceType: ResourceOther})
	assert.Equal(t, Capture, d.Action)
}

func TestCanonicalMediaURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example/video.mp4:1080p.ts/seg1", "https://cdn.example/video.mp4"},
		{"https://cdn.example/a/b.mp4:hls:manifest.m3u8.ts", "https://cdn.example/a/b.mp4"},
		{"https://cdn.example/x.mp4:1.mp4:2.ts", "https://cdn.example/x.mp4"},
		{"https://cdn.example/x.mp4/seg-1.ts", "https://cdn.example/x.mp4"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalMediaURL(tt.in), tt.in)
	}
}

func TestParseResourceType(t *testing.T) {
	assert.Equal(t, ResourceImage, ParseResourceType("Image"))
	assert.Equal(t, ResourceStylesheet, ParseResourceType("Stylesheet"))
	assert.Equal(t, ResourceFont, ParseResourceType("Font"))
	assert.Equal(t, ResourceMedia, ParseResourceType("Media"))
	assert.Equal(t, ResourceDocument, ParseResourceType("Document"))
	assert.Equal(t, ResourceOther, ParseResourceType("XHR"))
	assert.Equal(t, ResourceOther, ParseResourceType(""))
}
