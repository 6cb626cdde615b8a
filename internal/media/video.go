package media

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegVideo is a VideoSource backed by an ffmpeg rawvideo pipe. Frames are
// decoded on demand as RGBA; a seek restarts the pipe at the requested
// timestamp, which is why callers treat video seeks as expensive.
//
// All methods run on the control/frame thread; the audio thread never touches
// video sources.
type FFmpegVideo struct {
	mu sync.Mutex

	path     string
	width    int
	height   int
	fps      float64
	duration float64

	cmd        *exec.Cmd
	pipeReader io.ReadCloser
	playing    bool
	posSeconds float64
	frame      *image.RGBA
	haveFrame  bool
}

// probeInfo is the subset of ffprobe output the video source needs
type probeInfo struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// VideoInfo is the probed geometry and timing of a video file. Probing costs
// a process spawn, so callers cache it and mint sources from it.
type VideoInfo struct {
	Width    int
	Height   int
	Fps      float64
	Duration float64
}

// ProbeVideo runs ffprobe on a video file and returns its stream info
func ProbeVideo(path string) (VideoInfo, error) {
	slog.Debug("probing video file", "path", path)

	probeJSON, err := ffmpeg.Probe(path)
	if err != nil {
		slog.Error("video probe failed", "path", path, "error", err)
		return VideoInfo{}, fmt.Errorf("failed to probe video %s: %w", path, err)
	}

	width, height, fps, duration, err := parseProbe(probeJSON)
	if err != nil {
		slog.Error("video probe parse failed", "path", path, "error", err)
		return VideoInfo{}, fmt.Errorf("failed to parse probe for %s: %w", path, err)
	}

	slog.Info("video probed",
		"path", path,
		"width", width,
		"height", height,
		"fps", fps,
		"duration_s", duration)

	return VideoInfo{Width: width, Height: height, Fps: fps, Duration: duration}, nil
}

// NewVideoWithInfo creates a stopped video source from already-probed info
func NewVideoWithInfo(path string, info VideoInfo) *FFmpegVideo {
	return &FFmpegVideo{
		path:     path,
		width:    info.Width,
		height:   info.Height,
		fps:      info.Fps,
		duration: info.Duration,
		frame:    image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
	}
}

// OpenVideo probes a video file and returns a stopped source positioned at 0
func OpenVideo(path string) (*FFmpegVideo, error) {
	info, err := ProbeVideo(path)
	if err != nil {
		return nil, err
	}
	return NewVideoWithInfo(path, info), nil
}

// parseProbe extracts the video stream geometry, frame rate and duration from
// ffprobe JSON output
func parseProbe(probeJSON string) (width, height int, fps, duration float64, err error) {
	var info probeInfo
	if err = json.Unmarshal([]byte(probeJSON), &info); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid probe output: %w", err)
	}

	for _, stream := range info.Streams {
		if stream.CodecType != "video" {
			continue
		}
		width = stream.Width
		height = stream.Height
		fps = parseFrameRate(stream.AvgFrameRate)
		if stream.Duration != "" {
			duration, _ = strconv.ParseFloat(stream.Duration, 64)
		}
		break
	}

	if duration == 0 && info.Format.Duration != "" {
		duration, _ = strconv.ParseFloat(info.Format.Duration, 64)
	}

	if width == 0 || height == 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: no video stream found", ErrInvalidData)
	}
	if fps <= 0 {
		fps = 25
	}
	return width, height, fps, duration, nil
}

// parseFrameRate parses ffprobe's "num/den" rational frame rate
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(rate, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// Play starts decoding from the current position
func (v *FFmpegVideo) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.playing {
		return
	}
	if err := v.startPipe(v.posSeconds); err != nil {
		slog.Error("failed to start video pipe", "path", v.path, "error", err)
		return
	}
	v.playing = true
}

// Stop halts decoding, leaving the position where it is
func (v *FFmpegVideo) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopPipe()
	v.playing = false
}

// IsPlaying reports whether the pipe is running
func (v *FFmpegVideo) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Duration returns the media duration in seconds
func (v *FFmpegVideo) Duration() float64 { return v.duration }

// Position returns the normalized position in [0,1]
func (v *FFmpegVideo) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.duration == 0 {
		return 0
	}
	return v.posSeconds / v.duration
}

// SetPosition seeks to a normalized position. Seeking restarts the ffmpeg
// pipe, which costs hundreds of milliseconds on compressed formats; callers
// decide when a seek is worth it.
func (v *FFmpegVideo) SetPosition(pos float64) {
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.posSeconds = pos * v.duration
	if v.playing {
		v.stopPipe()
		if err := v.startPipe(v.posSeconds); err != nil {
			slog.Error("failed to restart video pipe after seek",
				"path", v.path, "error", err)
			v.playing = false
		}
	}
}

// NextFrame decodes and returns the next frame, advancing the position by one
// frame interval. Returns nil when stopped or at end of stream.
func (v *FFmpegVideo) NextFrame() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.playing || v.pipeReader == nil {
		return nil
	}

	if _, err := io.ReadFull(v.pipeReader, v.frame.Pix); err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			slog.Warn("video frame read failed", "path", v.path, "error", err)
		}
		v.stopPipe()
		v.playing = false
		return nil
	}

	v.posSeconds += 1.0 / v.fps
	v.haveFrame = true
	return v.frame
}

// CurrentFrame returns the most recently decoded frame without advancing, or
// nil if none has been decoded yet
func (v *FFmpegVideo) CurrentFrame() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.haveFrame {
		return nil
	}
	return v.frame
}

// Close stops the pipe and releases the process
func (v *FFmpegVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopPipe()
	v.playing = false
	return nil
}

// startPipe launches ffmpeg decoding rawvideo RGBA to a pipe starting at the
// given offset. Caller holds the mutex.
func (v *FFmpegVideo) startPipe(atSeconds float64) error {
	pipeReader, pipeWriter := io.Pipe()

	inputArgs := ffmpeg.KwArgs{}
	if atSeconds > 0 {
		inputArgs["ss"] = fmt.Sprintf("%.3f", atSeconds)
	}
	outputArgs := ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
	}

	cmd := ffmpeg.Input(v.path, inputArgs).
		Output("pipe:", outputArgs).
		WithOutput(pipeWriter).
		Compile()

	if err := cmd.Start(); err != nil {
		pipeReader.Close()
		pipeWriter.Close()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go func() {
		err := cmd.Wait()
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			slog.Debug("ffmpeg video pipe finished", "path", v.path, "error", err)
		}
		pipeWriter.Close()
	}()

	v.cmd = cmd
	v.pipeReader = pipeReader
	return nil
}

// stopPipe kills the decoder process if one is running. Caller holds the mutex.
func (v *FFmpegVideo) stopPipe() {
	if v.cmd != nil && v.cmd.Process != nil {
		_ = v.cmd.Process.Kill()
	}
	if v.pipeReader != nil {
		_ = v.pipeReader.Close()
	}
	v.cmd = nil
	v.pipeReader = nil
}
