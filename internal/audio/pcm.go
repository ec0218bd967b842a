package audio

import "github.com/faiface/beep"

// FromPCM16 wraps mono 16-bit samples as a beep stream.
func FromPCM16(samples []int16, rate int) (beep.Streamer, beep.Format) {
	pos := 0

	s := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}

		n := 0
		for n < len(buf) && pos < len(samples) {
			v := float64(samples[pos]) / 32768
			buf[n][0], buf[n][1] = v, v
			n++
			pos++
		}
		return n, true
	})

	return s, beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: 1,
		Precision:   2,
	}
}
