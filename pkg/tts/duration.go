package tts

import (
	"bytes"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// ProbeDuration estimates the playback duration of an assembled artifact.
// It returns zero when the audio cannot be decoded.
func ProbeDuration(audio []byte, enc Encoding) time.Duration {
	if len(audio) == 0 {
		return 0
	}

	switch {
	case enc.IsMP3():
		dec, err := mp3.NewDecoder(bytes.NewReader(audio))
		if err != nil {
			return 0
		}
		rate := dec.SampleRate()
		length := dec.Length()
		if rate <= 0 || length <= 0 {
			return 0
		}
		// go-mp3 always decodes to 16-bit stereo: 4 bytes per frame.
		frames := length / 4
		return time.Duration(frames) * time.Second / time.Duration(rate)
	case strings.HasPrefix(string(enc), "pcm_"):
		// PCM16 mono = 2 bytes per sample
		samples := len(audio) / 2
		return time.Duration(samples) * time.Second / time.Duration(SampleRateFromEncoding(enc))
	case enc == EncodingULaw:
		return time.Duration(len(audio)) * time.Second / 8000
	default:
		return 0
	}
}
