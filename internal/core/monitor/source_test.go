package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=2500000,RESOLUTION=1280x720
high/index.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXTINF:4.0,
seg0.ts
#EXT-X-ENDLIST
`

func TestResolveHLSMaster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, masterPlaylist)
	}))
	defer srv.Close()

	got, err := resolveHLS(srv.URL + "/live/index.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	// 选码率最高的子流，相对地址拼回主列表目录
	want := srv.URL + "/live/high/index.m3u8"
	if got != want {
		t.Fatalf("resolved = %s, want %s", got, want)
	}
}

func TestResolveHLSMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, mediaPlaylist)
	}))
	defer srv.Close()

	url := srv.URL + "/live/index.m3u8"
	got, err := resolveHLS(url)
	if err != nil {
		t.Fatal(err)
	}
	if got != url {
		t.Fatalf("media playlist should resolve to itself, got %s", got)
	}
}

func TestFileSource(t *testing.T) {
	cfg := testMonitorConf()
	frameSize := cfg.FrameWidth * cfg.FrameHeight * 3 / 2

	// 两帧整帧加半帧残余，残余不足一帧按流结束处理
	path := filepath.Join(t.TempDir(), "clip.yuv")
	data := make([]byte, frameSize*2+frameSize/2)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	f := testMonitorFeed()
	f.StreamURL = path
	src, err := openSource(cfg, f)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Live() {
		t.Fatal("file source should not be live")
	}

	ctx := context.Background()
	for i := range 2 {
		frame, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(frame.Data) != frameSize {
			t.Fatalf("frame size = %d, want %d", len(frame.Data), frameSize)
		}
	}
	if _, err := src.Read(ctx); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestOpenSourceEmptyURL(t *testing.T) {
	f := testMonitorFeed()
	f.StreamURL = ""
	if _, err := openSource(testMonitorConf(), f); err == nil {
		t.Fatal("expected error for empty stream url")
	}
}
