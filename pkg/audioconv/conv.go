package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

type Options struct {
	MaxSamples int
}

type decoder func(io.ReadSeeker) (pcm []float32, channels, rate int, err error)

// DecodeFile reads a wav, mp3 or ogg (vorbis or opus) recording and returns
// it as mono float32 PCM at 16 kHz, ready for whisper.
func DecodeFile(path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var candidates []decoder
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		candidates = []decoder{decodeWAV}
	case ".mp3":
		candidates = []decoder{decodeMP3}
	case ".ogg", ".oga", ".opus":
		candidates = []decoder{decodeVorbis, decodeOpus}
	default:
		magic, _ := bufio.NewReader(f).Peek(4)
		switch string(magic) {
		case "RIFF":
			candidates = []decoder{decodeWAV}
		case "OggS":
			candidates = []decoder{decodeVorbis, decodeOpus}
		default:
			return nil, fmt.Errorf("unsupported format: %s", path)
		}
	}

	var errs []error
	for _, dec := range candidates {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}

		pcm, ch, sr, err := dec(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return finish(pcm, ch, sr, opt), nil
	}

	return nil, fmt.Errorf("decode %s: %w", path, errors.Join(errs...))
}

func finish(x []float32, channels, rate int, opt Options) []float32 {
	x = Downmix(x, channels)
	x = Resample(x, rate, TargetRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, errors.New("invalid wav")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if pb == nil || pb.Format == nil || len(pb.Data) == 0 {
		return nil, 0, 0, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))

	x := make([]float32, len(pb.Data))
	for i, v := range pb.Data {
		x[i] = float32(math.Max(-1, math.Min(1, float64(v)*scale)))
	}

	return x, pb.Format.NumChannels, pb.Format.SampleRate, nil
}

func decodeMP3(r io.ReadSeeker) ([]float32, int, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, 0, 0, err
	}

	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(&raw, binary.LittleEndian, ints); err != nil {
		return nil, 0, 0, err
	}

	// go-mp3 always yields 16-bit stereo
	return int16ToFloat32(ints), 2, dec.SampleRate(), nil
}

func decodeVorbis(r io.ReadSeeker) ([]float32, int, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, 0, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, 0, 0, errors.New("invalid ogg/vorbis stream")
	}
	return pcm, format.Channels, format.SampleRate, nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, int, int, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
	}

	// opus always decodes at 48 kHz
	return pcm, ch, 48000, nil
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	out := make([]float32, len(in)/channels)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between rates with linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from <= 0 || from == to || len(in) == 0 {
		return in
	}

	ratio := float64(to) / float64(from)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))

	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}
