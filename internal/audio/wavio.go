package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/faiface/beep/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
)

// Clip holds decoded mono samples at the source sample rate
type Clip struct {
	Samples []float64
	Rate    int
}

// Duration returns the clip length in seconds
func (c *Clip) Duration() float64 {
	if c.Rate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Decode reads a WAV or MP3 file into mono float64 samples
func Decode(path string) (*Clip, error) {
	format, err := ValidateInput(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWAV:
		return decodeWAV(path)
	case FormatMP3:
		return decodeMP3(path)
	}
	return nil, apperrors.ErrUnsupportedFormat
}

func decodeWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing format chunk", apperrors.ErrCorruptedFile)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{Samples: samples, Rate: buf.Format.SampleRate}, nil
}

func decodeMP3(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}
	defer streamer.Close()

	var samples []float64
	buf := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			samples = append(samples, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}

	return &Clip{Samples: samples, Rate: int(format.SampleRate)}, nil
}

// WriteWAV writes mono samples as 16-bit PCM
func WriteWAV(path string, samples []float64, rate int) error {
	return writeWAV(path, [][]float64{samples}, rate)
}

// WriteStereoWAV writes left/right channels as 16-bit PCM
func WriteStereoWAV(path string, left, right []float64, rate int) error {
	return writeWAV(path, [][]float64{left, right}, rate)
}

func writeWAV(path string, channels [][]float64, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	numChans := len(channels)
	enc := wav.NewEncoder(f, rate, 16, numChans, 1)

	frames := len(channels[0])
	data := make([]int, frames*numChans)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChans; ch++ {
			v := channels[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[i*numChans+ch] = int(math.Round(v * 32767))
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
