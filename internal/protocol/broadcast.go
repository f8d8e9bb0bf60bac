package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultFrameTimeout bounds the wait for one frame's reply.
const DefaultFrameTimeout = 5 * time.Second

// FrameInfo identifies a frame within a tab. ParentID is -1 for the top
// frame.
type FrameInfo struct {
	ID       int    `yaml:"frame_id"        json:"frameId"`
	ParentID int    `yaml:"parent_frame_id" json:"parentFrameId"`
	URL      string `yaml:"frame_url"       json:"frameUrl"`
}

// Frame delivers messages to one frame's agent.
type Frame interface {
	Info() FrameInfo
	Send(ctx context.Context, msg Message) (Reply, error)
}

// Result is the outcome of delivering a message to one frame.
type Result struct {
	FrameID       int    `yaml:"frame_id"          json:"frameId"`
	ParentFrameID int    `yaml:"parent_frame_id"   json:"parentFrameId"`
	FrameURL      string `yaml:"frame_url"         json:"frameUrl"`
	OK            bool   `yaml:"ok"                json:"ok"`
	Error         string `yaml:"error,omitempty"   json:"error,omitempty"`
	Reply         *Reply `yaml:"response,omitempty" json:"response,omitempty"`
}

// BroadcastOptions tune Broadcast.
type BroadcastOptions struct {
	Timeout time.Duration // Per frame, default DefaultFrameTimeout
	// Exclude skips frames for which it returns true.
	Exclude func(FrameInfo) bool
	Logger  *slog.Logger
}

// Broadcast sends msg to every frame concurrently and returns one result per
// delivered frame in input order. A frame that fails, panics or exceeds the
// timeout yields an OK=false result; it never affects the other frames and
// Broadcast itself never fails.
func Broadcast(ctx context.Context, frames []Frame, msg Message, opts BroadcastOptions) []Result {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFrameTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var targets []Frame
	for _, f := range frames {
		if opts.Exclude != nil && opts.Exclude(f.Info()) {
			continue
		}
		targets = append(targets, f)
	}

	results := make([]Result, len(targets))
	var g errgroup.Group
	for i, f := range targets {
		g.Go(func() error {
			info := f.Info()
			res := Result{FrameID: info.ID, ParentFrameID: info.ParentID, FrameURL: info.URL}
			fctx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
			reply, err := deliver(fctx, f, msg)
			if err != nil {
				res.Error = err.Error()
				opts.Logger.Debug("frame delivery failed", "type", msg.Type, "frame", info.ID, "error", err)
			} else {
				res.OK = true
				res.Reply = &reply
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// deliver sends msg and waits for the reply or ctx, whichever comes first.
// A frame that ignores ctx is abandoned, not awaited.
func deliver(ctx context.Context, f Frame, msg Message) (Reply, error) {
	type outcome struct {
		reply Reply
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("protocol: frame panicked: %v", r)}
			}
		}()
		reply, err := f.Send(ctx, msg)
		ch <- outcome{reply: reply, err: err}
	}()
	select {
	case o := <-ch:
		return o.reply, o.err
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("protocol: %s: %w", msg.Type, ctx.Err())
	}
}

// Summary counts the results of one broadcast.
type Summary struct {
	Frames int `yaml:"frames" json:"frames"`
	OK     int `yaml:"ok"     json:"ok"`
	Failed int `yaml:"failed" json:"failed"`
}

// Summarize counts ok and failed results.
func Summarize(results []Result) Summary {
	s := Summary{Frames: len(results)}
	for _, r := range results {
		if r.OK {
			s.OK++
		} else {
			s.Failed++
		}
	}
	return s
}
