package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// Extractor pulls the audio track out of a video container with ffmpeg,
// producing 16kHz mono WAV, the format transcription backends work best with.
type Extractor struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewExtractor creates an Extractor. ffmpegPath defaults to "ffmpeg" on PATH.
func NewExtractor(ffmpegPath string, logger *slog.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ffmpegPath: ffmpegPath, logger: logger}
}

// ExtractAudio writes the audio track of videoPath next to it and returns
// the new file's path.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_audio.wav"

	args := []string{
		"-i", videoPath,
		"-vn", // drop the video stream
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		audioPath,
	}

	e.logger.Info("Extracting audio from video",
		slog.String("video", videoPath),
		slog.String("audio", audioPath),
	)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("ffmpeg failed: %w\nstderr: %s", err, stderrStr)
		}
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	return audioPath, nil
}
