package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/findclose/internal/agent"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/protocol"
	"github.com/mj1618/findclose/internal/settings"
)

type iconCall struct {
	tab  int
	path string
}

type iconRecorder struct {
	mu    sync.Mutex
	calls []iconCall
}

func (r *iconRecorder) SetIcon(_ context.Context, tabID int, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, iconCall{tabID, path})
	return nil
}

func (r *iconRecorder) last() iconCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

type frameList map[int][]protocol.Frame

func (l frameList) Frames(_ context.Context, tabID int) ([]protocol.Frame, error) {
	frames, ok := l[tabID]
	if !ok {
		return nil, errors.New("no tab with id")
	}
	return frames, nil
}

type failingFrame struct{ id int }

func (f failingFrame) Info() protocol.FrameInfo {
	return protocol.FrameInfo{ID: f.id, ParentID: 0, URL: "https://ads.example/"}
}

func (f failingFrame) Send(context.Context, protocol.Message) (protocol.Reply, error) {
	return protocol.Reply{}, errors.New("could not establish connection")
}

// newFrameAgent returns an agent over a page holding one button the finder
// always reports.
func newFrameAgent(id int, top bool, url string) (*agent.Agent, *model.Element) {
	btn := model.El("button", "class", "close").WithText("×").WithRect(10, 10, 30, 30)
	doc := model.NewPage(url, 300, 250, btn)
	ag := agent.New(agent.Options{
		Document:      doc,
		FrameID:       id,
		ParentFrameID: 0,
		IsTop:         top,
		Scheduler:     loop.NewManual(time.Unix(0, 0)),
		Finder:        highlight.FinderFunc(func(*model.Document) []*model.Element { return []*model.Element{btn} }),
	})
	return ag, btn
}

func TestIconPath(t *testing.T) {
	assert.Equal(t, "./images/toolbar-icon-on.svg", IconPath(true))
	assert.Equal(t, "./images/toolbar-icon.svg", IconPath(false))
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore(settings.Defaults())
	icons := &iconRecorder{}
	h := New(Options{Store: store, Icons: icons})
	h.Start(ctx)
	assert.Equal(t, iconCall{0, IconOff}, icons.last())

	got := h.Toggle(ctx, 12)
	assert.True(t, got.IsFindCloseEnabled)
	assert.Equal(t, iconCall{12, IconOn}, icons.last())

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, stored.IsFindCloseEnabled)

	h.Toggle(ctx, 12)
	assert.False(t, h.Enabled())
	assert.Equal(t, iconCall{12, IconOff}, icons.last())
}

func TestFollowsStoreChanges(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore(settings.Defaults())
	icons := &iconRecorder{}
	h := New(Options{Store: store, Icons: icons})
	h.Start(ctx)

	require.NoError(t, store.Save(ctx, settings.Settings{IsFindCloseEnabled: true}))
	assert.True(t, h.Enabled())

	_, err := h.HandleMessage(ctx, Sender{TabID: 3}, protocol.Message{Type: protocol.TypeUpdateIcon})
	require.NoError(t, err)
	assert.Equal(t, iconCall{0, IconOn}, icons.last())

	h.TabUpdated(ctx, 3)
	assert.Equal(t, iconCall{3, IconOn}, icons.last())

	h.Close()
	require.NoError(t, store.Save(ctx, settings.Defaults()))
	assert.True(t, h.Enabled(), "closed hub stops following the store")
}

type brokenStore struct{ settings.MemoryStore }

func (*brokenStore) Load(context.Context) (settings.Settings, error) {
	return settings.Settings{}, errors.New("storage corrupted")
}

func (*brokenStore) Save(context.Context, settings.Settings) error {
	return errors.New("quota exceeded")
}

func TestStorageFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	icons := &iconRecorder{}
	h := New(Options{Store: &brokenStore{}, Icons: icons})
	h.Start(ctx)
	assert.False(t, h.Enabled())

	got := h.Toggle(ctx, 1)
	assert.True(t, got.IsFindCloseEnabled, "state is kept in memory when saving fails")
	assert.Equal(t, iconCall{1, IconOn}, icons.last())
}

func TestShakeFanOutSkipsSender(t *testing.T) {
	ctx := context.Background()
	top, topBtn := newFrameAgent(0, true, "https://news.example/")
	embed, embedBtn := newFrameAgent(5, false, "https://news.example/embed")
	h := New(Options{
		Frames:       frameList{7: {top, embed, failingFrame{id: 9}}},
		FrameTimeout: time.Second,
	})

	results, err := h.HandleMessage(ctx, Sender{TabID: 7, FrameID: 0}, protocol.Message{Type: protocol.TypeShakeStart})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 5, results[0].FrameID)
	assert.True(t, results[0].OK)
	assert.Equal(t, 1, results[0].Reply.AddedCount)
	assert.True(t, embedBtn.HasClass(highlight.MarkerClass))
	assert.False(t, topBtn.HasClass(highlight.MarkerClass), "the sender is not asked to scan again")

	assert.Equal(t, 9, results[1].FrameID)
	assert.False(t, results[1].OK)
	assert.Equal(t, "https://ads.example/", results[1].FrameURL)
	assert.Contains(t, results[1].Error, "could not establish connection")

	results, err = h.HandleMessage(ctx, Sender{TabID: 7, FrameID: 0}, protocol.Message{Type: protocol.TypeShakeEnd})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Reply.ClearedCount)
	assert.Empty(t, embed.Controller().Active())
}

func TestFanOutWithoutTab(t *testing.T) {
	h := New(Options{Frames: frameList{}})

	results, err := h.HandleMessage(context.Background(), Sender{}, protocol.Message{Type: protocol.TypeShakeStart})
	assert.NoError(t, err)
	assert.Empty(t, results)

	results, err = h.HandleMessage(context.Background(), Sender{TabID: 99}, protocol.Message{Type: protocol.TypeShakeEnd})
	assert.NoError(t, err, "frame listing failures yield no results")
	assert.Empty(t, results)
}

func TestUnknownMessage(t *testing.T) {
	h := New(Options{})
	_, err := h.HandleMessage(context.Background(), Sender{TabID: 1}, protocol.Message{Type: protocol.TypeRunShakeScan})
	assert.ErrorIs(t, err, protocol.ErrUnknownMessage)
}
