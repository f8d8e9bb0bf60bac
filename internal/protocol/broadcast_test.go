package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/findclose/internal/highlight"
)

type stubFrame struct {
	info FrameInfo
	send func(ctx context.Context, msg Message) (Reply, error)
}

func (f stubFrame) Info() FrameInfo { return f.info }

func (f stubFrame) Send(ctx context.Context, msg Message) (Reply, error) {
	return f.send(ctx, msg)
}

func okFrame(id int, url string) stubFrame {
	return stubFrame{
		info: FrameInfo{ID: id, ParentID: 0, URL: url},
		send: func(_ context.Context, msg Message) (Reply, error) {
			return Reply{FrameHref: url, IsTop: id == 0, TotalActive: id}, nil
		},
	}
}

func TestBroadcastResilience(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	frames := []Frame{
		okFrame(0, "https://news.example/"),
		stubFrame{
			info: FrameInfo{ID: 1, URL: "https://ads.example/slot"},
			send: func(context.Context, Message) (Reply, error) {
				return Reply{}, errors.New("receiving end does not exist")
			},
		},
		stubFrame{
			info: FrameInfo{ID: 2, URL: "https://slow.example/"},
			send: func(context.Context, Message) (Reply, error) {
				<-block // ignores ctx
				return Reply{}, nil
			},
		},
		stubFrame{
			info: FrameInfo{ID: 3, URL: "https://broken.example/"},
			send: func(context.Context, Message) (Reply, error) {
				panic("frame script crashed")
			},
		},
		okFrame(4, "https://video.example/embed"),
	}

	start := time.Now()
	results := Broadcast(context.Background(), frames, Message{Type: TypeRunShakeScan},
		BroadcastOptions{Timeout: 50 * time.Millisecond})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.FrameID, "results keep frame order")
	}

	assert.True(t, results[0].OK)
	require.NotNil(t, results[0].Reply)
	assert.Equal(t, "https://news.example/", results[0].Reply.FrameHref)

	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "receiving end")

	assert.False(t, results[2].OK)
	assert.Contains(t, results[2].Error, context.DeadlineExceeded.Error())

	assert.False(t, results[3].OK)
	assert.Contains(t, results[3].Error, "panicked")

	assert.True(t, results[4].OK)
	assert.Equal(t, "https://video.example/embed", results[4].FrameURL)

	assert.Equal(t, Summary{Frames: 5, OK: 2, Failed: 3}, Summarize(results))
}

func TestBroadcastExclude(t *testing.T) {
	frames := []Frame{okFrame(0, "a"), okFrame(7, "b"), okFrame(9, "c")}
	results := Broadcast(context.Background(), frames, Message{Type: TypeShakeStart}, BroadcastOptions{
		Exclude: func(info FrameInfo) bool { return info.ID == 7 },
	})

	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].FrameID)
	assert.Equal(t, 9, results[1].FrameID)
}

func TestBroadcastNoFrames(t *testing.T) {
	assert.Empty(t, Broadcast(context.Background(), nil, Message{Type: TypeClearShakeScan}, BroadcastOptions{}))
}

func TestMessageValid(t *testing.T) {
	assert.True(t, Message{Type: TypeUpdateIcon}.Valid())
	assert.False(t, Message{Type: "reload"}.Valid())

	err := Unknown(Message{Type: "reload"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Contains(t, err.Error(), `"reload"`)
}

func TestReplies(t *testing.T) {
	scan := ScanReply("https://x.example/", true, highlight.ScanResult{
		Source: "shake", FoundCount: 3, AddedCount: 2, TotalActive: 3, StyleReady: true,
	})
	assert.Equal(t, 3, scan.ActiveCount)
	assert.Equal(t, 2, scan.AddedCount)
	assert.True(t, scan.IsTop)
	assert.True(t, scan.StyleReady)

	cleared := ClearReply("https://x.example/f", false, highlight.ClearResult{ClearedCount: 3})
	assert.Equal(t, 3, cleared.ClearedCount)
	assert.Equal(t, 0, cleared.ActiveCount)
	assert.False(t, cleared.IsTop)
}

func TestReplyKeepsZeroFields(t *testing.T) {
	scan := ScanReply("https://news.example/", true, highlight.ScanResult{Source: "pointer"})
	data, err := json.Marshal(scan)
	require.NoError(t, err)
	for _, field := range []string{`"foundCount":0`, `"addedCount":0`, `"styleReady":false`, `"totalActive":0`} {
		assert.Contains(t, string(data), field)
	}

	var decoded Reply
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, scan, decoded)

	cleared := ClearReply("https://news.example/", false, highlight.ClearResult{})
	data, err = json.Marshal(cleared)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"clearedCount":0`)
}
