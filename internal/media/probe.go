package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes the streams of a media file as reported by ffprobe.
type Info struct {
	// Duration is the container duration in seconds.
	Duration float64
	// HasVideo and HasAudio report whether the file carries such streams.
	HasVideo bool
	HasAudio bool
	// Width and Height are the coded size of the first video stream.
	Width  int
	Height int
	// VideoCodec, PixelFormat and FrameRate describe the first video stream.
	VideoCodec  string
	PixelFormat string
	FrameRate   float64
	// AudioCodec, SampleRate and Channels describe the first audio stream.
	AudioCodec string
	SampleRate int
	Channels   int
	// AudioDuration is the duration of the first audio stream in seconds.
	AudioDuration float64
	// AudioStreams counts every audio stream in the file.
	AudioStreams int
	// Transform is the display matrix of the first video stream. It is the
	// zero value, which classifies as unknown, when there is no video.
	Transform Transform
}

// Orientation classifies the first video stream's display matrix.
func (i *Info) Orientation() OrientationInfo {
	return DetectOrientation(i.Transform)
}

// DisplaySize returns the frame size after the display rotation is applied,
// which is what ffmpeg decodes to by default.
func (i *Info) DisplaySize() (width, height int) {
	if i.Orientation().Orientation.IsPortrait() {
		return i.Height, i.Width
	}
	return i.Width, i.Height
}

// probeOutput mirrors the subset of ffprobe's JSON writer used here.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	PixFmt       string            `json:"pix_fmt"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	Disposition  map[string]int    `json:"disposition"`
	SideDataList []struct {
		SideDataType  string  `json:"side_data_type"`
		DisplayMatrix string  `json:"displaymatrix"`
		Rotation      float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// Probe inspects a media file with ffprobe.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &Info{}
	info.Duration = parseFloat(out.Format.Duration)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo || s.Disposition["attached_pic"] == 1 {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.PixelFormat = s.PixFmt
			info.FrameRate = parseRate(s.AvgFrameRate)
			info.Transform = streamTransform(s)
			if info.Duration == 0 {
				info.Duration = parseFloat(s.Duration)
			}
		case "audio":
			info.AudioStreams++
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			info.SampleRate = int(parseFloat(s.SampleRate))
			info.Channels = s.Channels
			info.AudioDuration = parseFloat(s.Duration)
			if info.Duration == 0 {
				info.Duration = parseFloat(s.Duration)
			}
		}
	}

	return info, nil
}

// streamTransform prefers the display matrix side data and falls back to
// the rotation value or the legacy rotate tag.
func streamTransform(s probeStream) Transform {
	for _, sd := range s.SideDataList {
		if sd.DisplayMatrix != "" {
			if t, ok := parseDisplayMatrix(sd.DisplayMatrix); ok {
				return t
			}
		}
		if sd.SideDataType == "Display Matrix" {
			if t, ok := TransformFromRotation(sd.Rotation); ok {
				return t
			}
		}
	}
	if rotate, ok := s.Tags["rotate"]; ok {
		// The tag is clockwise, ffprobe rotation is counterclockwise.
		if t, ok := TransformFromRotation(-parseFloat(rotate)); ok {
			return t
		}
	}
	return Identity
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRate parses an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}
