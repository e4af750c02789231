package audio

import (
	"fmt"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Frames returns the number of sample frames (one sample per channel) in buf.
func Frames(buf *goaudio.FloatBuffer) int {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return 0
	}
	return len(buf.Data) / buf.Format.NumChannels
}

// Duration returns the playing time of buf.
func Duration(buf *goaudio.FloatBuffer) time.Duration {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(Frames(buf)) * time.Second / time.Duration(buf.Format.SampleRate)
}

// ToChannels converts buf to the given channel count. Mono is duplicated
// into every output channel, any layout folds to mono by averaging, and
// other conversions map output channel c to input channel c modulo the
// input count.
func ToChannels(buf *goaudio.FloatBuffer, channels int) (*goaudio.FloatBuffer, error) {
	if buf == nil || buf.Format == nil {
		return nil, ErrEmptyBuffer
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrBadFormat, channels)
	}

	in := buf.Format.NumChannels
	if in == channels {
		return buf, nil
	}

	frames := Frames(buf)
	out := &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  buf.Format.SampleRate,
		},
		Data: make([]float64, frames*channels),
	}

	for f := range frames {
		src := buf.Data[f*in : f*in+in]
		dst := out.Data[f*channels : f*channels+channels]

		if channels == 1 {
			var sum float64
			for _, v := range src {
				sum += v
			}
			dst[0] = sum / float64(in)
			continue
		}

		for c := range dst {
			dst[c] = src[c%in]
		}
	}

	return out, nil
}

// Resample converts buf to rate using linear interpolation between
// neighbouring frames.
func Resample(buf *goaudio.FloatBuffer, rate int) (*goaudio.FloatBuffer, error) {
	if buf == nil || buf.Format == nil {
		return nil, ErrEmptyBuffer
	}
	if rate < 1 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrBadFormat, rate)
	}
	if buf.Format.SampleRate == rate {
		return buf, nil
	}

	ch := buf.Format.NumChannels
	inFrames := Frames(buf)
	outFrames := int(math.Round(float64(inFrames) * float64(rate) / float64(buf.Format.SampleRate)))

	out := &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: ch,
			SampleRate:  rate,
		},
		Data: make([]float64, outFrames*ch),
	}

	if inFrames == 0 {
		return out, nil
	}

	step := float64(buf.Format.SampleRate) / float64(rate)
	for f := range outFrames {
		pos := float64(f) * step
		i := int(pos)
		frac := pos - float64(i)
		j := min(i+1, inFrames-1)
		i = min(i, inFrames-1)

		for c := range ch {
			a := buf.Data[i*ch+c]
			b := buf.Data[j*ch+c]
			out.Data[f*ch+c] = a + (b-a)*frac
		}
	}

	return out, nil
}

// Conform resamples and re-lays out buf to match rate and channels.
func Conform(buf *goaudio.FloatBuffer, rate, channels int) (*goaudio.FloatBuffer, error) {
	result, err := ToChannels(buf, channels)
	if err != nil {
		return nil, err
	}
	return Resample(result, rate)
}

// Sum adds the given buffers sample by sample. All inputs must share a
// format; the result is as long as the longest input.
func Sum(inputs ...*goaudio.FloatBuffer) (*goaudio.FloatBuffer, error) {
	if len(inputs) == 0 || inputs[0] == nil || inputs[0].Format == nil {
		return nil, ErrEmptyBuffer
	}

	format := *inputs[0].Format
	longest := 0
	for _, in := range inputs {
		if in == nil || in.Format == nil {
			return nil, ErrEmptyBuffer
		}
		if in.Format.NumChannels != format.NumChannels || in.Format.SampleRate != format.SampleRate {
			return nil, fmt.Errorf("%w: can't mix %d Hz/%d ch with %d Hz/%d ch", ErrBadFormat,
				in.Format.SampleRate, in.Format.NumChannels, format.SampleRate, format.NumChannels)
		}
		longest = max(longest, len(in.Data))
	}

	out := &goaudio.FloatBuffer{
		Format: &format,
		Data:   make([]float64, longest),
	}
	for _, in := range inputs {
		for i, v := range in.Data {
			out.Data[i] += v
		}
	}

	return out, nil
}
