package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const oggPageDuration = 20 * time.Millisecond

var ErrNoTracks = errors.New("constraints request no tracks")

// FileCapturer produces sample tracks fed from an IVF video file and an Ogg
// Opus audio file, looping both until the stream is stopped. A track whose
// file is empty is still created but never receives samples.
type FileCapturer struct {
	VideoFile string
	AudioFile string
}

func (f *FileCapturer) Acquire(ctx context.Context, c Constraints) (*LocalStream, error) {
	if !c.Audio && !c.Video {
		return nil, ErrNoTracks
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream := NewLocalStream("")
	pumpCtx, cancel := context.WithCancel(context.Background())
	stream.stop = cancel

	if c.Video {
		mime := pion.MimeTypeVP8
		if f.VideoFile != "" {
			header, err := readIVFHeader(f.VideoFile)
			if err != nil {
				cancel()
				return nil, err
			}
			if mime, err = ivfMimeType(header.FourCC); err != nil {
				cancel()
				return nil, err
			}
		}
		track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: mime}, "video", stream.ID())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create video track: %w", err)
		}
		stream.tracks = append(stream.tracks, track)
		if f.VideoFile != "" {
			go loopFile(pumpCtx, f.VideoFile, track, pumpIVF)
		}
	}

	if c.Audio {
		if f.AudioFile != "" {
			if err := checkOgg(f.AudioFile); err != nil {
				cancel()
				return nil, err
			}
		}
		track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", stream.ID())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		stream.tracks = append(stream.tracks, track)
		if f.AudioFile != "" {
			go loopFile(pumpCtx, f.AudioFile, track, pumpOgg)
		}
	}

	return stream, nil
}

type pumpFunc func(ctx context.Context, r io.Reader, track *pion.TrackLocalStaticSample) error

// loopFile replays path into track until ctx ends or a read fails.
func loopFile(ctx context.Context, path string, track *pion.TrackLocalStaticSample, pump pumpFunc) {
	for ctx.Err() == nil {
		file, err := os.Open(path)
		if err != nil {
			slog.Error("open media file", "path", path, "error", err)
			return
		}
		err = pump(ctx, file, track)
		file.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() == nil {
				slog.Error("media file pump stopped", "path", path, "error", err)
			}
			return
		}
	}
}

func pumpIVF(ctx context.Context, r io.Reader, track *pion.TrackLocalStaticSample) error {
	ivf, header, err := ivfreader.NewWith(r)
	if err != nil {
		return err
	}

	frameDuration := time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	if frameDuration <= 0 {
		frameDuration = time.Second / 30
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, _, err := ivf.ParseNextFrame()
		if err != nil {
			return err
		}
		if err := track.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return err
		}
	}
}

func pumpOgg(ctx context.Context, r io.Reader, track *pion.TrackLocalStaticSample) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if err != nil {
			return err
		}

		sampleCount := float64(header.GranulePosition - lastGranule)
		lastGranule = header.GranulePosition
		duration := time.Duration(sampleCount / 48000 * float64(time.Second))

		if err := track.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

func readIVFHeader(path string) (*ivfreader.IVFFileHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer file.Close()

	_, header, err := ivfreader.NewWith(file)
	if err != nil {
		return nil, fmt.Errorf("read ivf header %s: %w", path, err)
	}
	return header, nil
}

func checkOgg(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	if _, _, err := oggreader.NewWith(file); err != nil {
		return fmt.Errorf("read ogg header %s: %w", path, err)
	}
	return nil
}

func ivfMimeType(fourcc string) (string, error) {
	switch fourcc {
	case "VP80":
		return pion.MimeTypeVP8, nil
	case "VP90":
		return pion.MimeTypeVP9, nil
	case "AV01":
		return pion.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", fourcc)
	}
}
