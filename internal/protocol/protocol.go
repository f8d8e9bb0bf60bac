// Package protocol defines the messages exchanged between the background
// coordinator and the frame agents, and the per-frame fan-out that delivers
// them.
package protocol

import (
	"errors"
	"fmt"

	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/model"
)

// Type is a message type.
type Type string

const (
	TypeRunShakeScan   Type = "run-shake-scan"
	TypeClearShakeScan Type = "clear-shake-scan"
	TypeUpdateIcon     Type = "update-icon"
	TypeShakeStart     Type = "shake-start"
	TypeShakeEnd       Type = "shake-end"
)

// ErrUnknownMessage is returned for a message type the receiver does not
// handle.
var ErrUnknownMessage = errors.New("protocol: unknown message")

// Message is one request. None of the message types carry a payload.
type Message struct {
	Type Type `yaml:"type" json:"type"`
}

// Valid reports whether m names a known type.
func (m Message) Valid() bool {
	switch m.Type {
	case TypeRunShakeScan, TypeClearShakeScan, TypeUpdateIcon, TypeShakeStart, TypeShakeEnd:
		return true
	}
	return false
}

// Unknown returns the error for an unhandled message.
func Unknown(m Message) error {
	return fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
}

// Reply is a frame's answer to run-shake-scan or clear-shake-scan.
type Reply struct {
	FrameHref   string `yaml:"frame_href"   json:"frameHref"`
	IsTop       bool   `yaml:"is_top"       json:"isTop"`
	ActiveCount int    `yaml:"active_count" json:"activeCount"`

	Source       string        `yaml:"source,omitempty" json:"source,omitempty"`
	FoundCount   int           `yaml:"found_count"      json:"foundCount"`
	AddedCount   int           `yaml:"added_count"      json:"addedCount"`
	StyleReady   bool          `yaml:"style_ready"      json:"styleReady"`
	ClearedCount int           `yaml:"cleared_count"    json:"clearedCount"`
	TotalActive  int           `yaml:"total_active"     json:"totalActive"`
	Found        []model.Brief `yaml:"found,omitempty"  json:"foundButtons,omitempty"`
	Added        []model.Brief `yaml:"added,omitempty"  json:"addedElements,omitempty"`
}

// ScanReply builds the reply to run-shake-scan.
func ScanReply(frameHref string, isTop bool, r highlight.ScanResult) Reply {
	return Reply{
		FrameHref:   frameHref,
		IsTop:       isTop,
		ActiveCount: r.TotalActive,
		Source:      r.Source,
		FoundCount:  r.FoundCount,
		AddedCount:  r.AddedCount,
		StyleReady:  r.StyleReady,
		TotalActive: r.TotalActive,
		Found:       r.Found,
		Added:       r.Added,
	}
}

// ClearReply builds the reply to clear-shake-scan.
func ClearReply(frameHref string, isTop bool, r highlight.ClearResult) Reply {
	return Reply{
		FrameHref:    frameHref,
		IsTop:        isTop,
		ActiveCount:  r.TotalActive,
		ClearedCount: r.ClearedCount,
		TotalActive:  r.TotalActive,
	}
}
