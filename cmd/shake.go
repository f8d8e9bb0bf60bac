package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/spf13/cobra"
)

var shakeCmd = &cobra.Command{
	Use:   "shake",
	Short: "Replay recorded input samples through a shake detector",
	Long: `Feed a JSON-lines recording through the pointer or motion shake detector on a
simulated clock and print every shake-start and shake-end transition.

Pointer lines:  {"t": 120, "x": 310, "y": 200, "pointerType": "mouse"}
Motion lines:   {"t": 120, "acceleration": {"x": 3.1, "y": 9.8, "z": 0.4}}

"t" is milliseconds since the start of the recording.

Examples:
  findclose shake --input wiggle.jsonl
  findclose shake --input phone.jsonl --kind motion
  cat wiggle.jsonl | findclose shake --input -`,
	RunE: runShake,
}

func init() {
	rootCmd.AddCommand(shakeCmd)
	shakeCmd.Flags().String("input", "", "JSON-lines sample file, - for stdin (required)")
	shakeCmd.Flags().String("kind", string(gesture.KindPointer), "Detector: pointer, motion")
	shakeCmd.Flags().String("viewport", "1280x800", "Viewport as WIDTHxHEIGHT, scales the pointer stop timeout")
	shakeCmd.Flags().Duration("tail", 5*time.Second, "Simulated time after the last sample, lets a shake end")
}

// shakeSample is one recorded line.
type shakeSample struct {
	T            int64         `json:"t"`
	X            float64       `json:"x"`
	Y            float64       `json:"y"`
	PointerType  string        `json:"pointerType"`
	Acceleration *gesture.Vec3 `json:"acceleration"`
}

// Transition is one detector state change.
type Transition struct {
	Type string `yaml:"type" json:"type"`
	AtMS int64  `yaml:"at_ms" json:"atMs"`
}

// ShakeReplay is the result of replaying a recording.
type ShakeReplay struct {
	Kind        gesture.Kind `yaml:"kind"        json:"kind"`
	Samples     int          `yaml:"samples"     json:"samples"`
	Timeout     string       `yaml:"timeout"     json:"timeout"`
	Transitions []Transition `yaml:"transitions" json:"transitions"`
}

func runShake(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	kind, _ := cmd.Flags().GetString("kind")
	vp, _ := cmd.Flags().GetString("viewport")
	tail, _ := cmd.Flags().GetDuration("tail")

	if input == "" {
		return fmt.Errorf("--input is required")
	}
	size, err := platform.ParseViewport(vp)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	replay, err := replayShake(r, gesture.Kind(kind), appCfg, size, tail)
	if err != nil {
		return err
	}
	return output.Print(replay)
}

// replayShake drives a detector from recorded samples on a manual clock.
func replayShake(r io.Reader, kind gesture.Kind, cfg config.Config, vp model.Size, tail time.Duration) (ShakeReplay, error) {
	start := time.Unix(0, 0)
	clock := loop.NewManual(start)
	feed := gesture.NewFeed()

	var det gesture.Detector
	var timeout time.Duration
	switch kind {
	case gesture.KindPointer:
		po := cfg.Pointer
		po.Logger = logger
		po.Timeout = cfg.Timeouts.ForViewport(vp.Width, vp.Height)
		timeout = po.Timeout
		det = gesture.NewPointer(clock, feed, po)
	case gesture.KindMotion:
		ao := cfg.Shake
		ao.Logger = logger
		timeout = ao.Timeout
		det = gesture.NewAcceleration(clock, feed, ao)
	default:
		return ShakeReplay{}, fmt.Errorf("unknown detector kind %q (expected pointer or motion)", kind)
	}

	replay := ShakeReplay{Kind: kind, Timeout: timeout.String(), Transitions: []Transition{}}
	mark := func(t string) func() {
		return func() {
			replay.Transitions = append(replay.Transitions, Transition{Type: t, AtMS: clock.Now().Sub(start).Milliseconds()})
		}
	}
	det.SetHandlers(gesture.Handlers{OnShakeStart: mark("shake-start"), OnShakeEnd: mark("shake-end")})
	if !det.Start(context.Background()) {
		return replay, fmt.Errorf("%s detector did not start", kind)
	}
	defer det.Stop()

	samples, err := readSamples(r)
	if err != nil {
		return replay, err
	}
	for _, s := range samples {
		clock.AdvanceTo(start.Add(time.Duration(s.T) * time.Millisecond))
		if kind == gesture.KindPointer {
			feed.EmitPointer(gesture.PointerSample{X: s.X, Y: s.Y, PointerType: s.PointerType})
		} else {
			feed.EmitMotion(gesture.MotionSample{Acceleration: s.Acceleration})
		}
		replay.Samples++
	}
	clock.Advance(tail)
	return replay, nil
}

// readSamples parses a JSON-lines recording. Blank lines and # comments are
// skipped; timestamps may not decrease.
func readSamples(r io.Reader) ([]shakeSample, error) {
	var out []shakeSample
	var last int64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var s shakeSample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if s.T < last {
			return nil, fmt.Errorf("line %d: timestamp %d goes backwards", line, s.T)
		}
		last = s.T
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
