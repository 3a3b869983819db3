// Package audio provides the conversion capability used by queued jobs: given
// a source file, produce the slowed-down rendition or fail.
//
// The default implementation shells out to SoX with a fixed effect chain
// (speed change, band filtering, normalization, reverb) and writes a 320 kbps
// MP3 next to the source. Everything above this package treats the transform
// as an opaque contract, so tests substitute a fake and the DSP details stay
// out of the core.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Transformer converts a source media file and returns the path of the
// produced file. Implementations must be safe for sequential reuse; the queue
// guarantees no two transforms run concurrently.
type Transformer interface {
	Transform(ctx context.Context, sourcePath string) (string, error)
}

// SoxTransformer runs the conversion through the SoX command-line tool.
//
// The effect chain reproduces the classic 45→33 rpm sound: resample to the
// configured speed ratio, cut rumble below 100 Hz and hiss above 8 kHz,
// normalize to -1 dB, and add a large-room reverb.
type SoxTransformer struct {
	// SoxPath is the sox binary to invoke (default "sox").
	SoxPath string
	// SpeedRatio is the playback-speed multiplier applied to the source.
	SpeedRatio float64
	// Timeout bounds a single invocation; zero means no limit.
	Timeout time.Duration
	// Log receives per-invocation diagnostics.
	Log zerolog.Logger
}

// Transform converts sourcePath and returns the output path
// ("<stem>_slow.mp3" beside the source). The returned error wraps sox's
// stderr when the tool exits non-zero.
func (t *SoxTransformer) Transform(ctx context.Context, sourcePath string) (string, error) {
	bin := t.SoxPath
	if bin == "" {
		bin = "sox"
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	outPath := slowedPath(sourcePath)
	args := []string{
		sourcePath,
		"-C", "320", // MP3 bitrate
		outPath,
		"speed", strconv.FormatFloat(t.SpeedRatio, 'f', -1, 64),
		"highpass", "100",
		"lowpass", "8000",
		"norm", "-1",
		"reverb", "50", "0", "100", "50",
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		t.Log.Error().
			Str("source", sourcePath).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Err(err).
			Msg("sox failed")
		return "", fmt.Errorf("sox %s: %w (%s)", sourcePath, err, strings.TrimSpace(stderr.String()))
	}

	t.Log.Debug().
		Str("source", sourcePath).
		Str("output", outPath).
		Dur("took", time.Since(start)).
		Msg("transform complete")
	return outPath, nil
}

// slowedPath derives the output filename from the source: the extension is
// replaced by "_slow.mp3".
func slowedPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + "_slow.mp3"
}
