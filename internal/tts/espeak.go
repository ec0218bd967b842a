package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static short *pcm_buf;
static int pcm_len;
static int pcm_cap;

static int
collect(short *wav, int n, espeak_EVENT *events)
{
	if (!wav || n <= 0)
	{ return 0; }

	if (pcm_len + n > pcm_cap)
	{
		int cap = pcm_cap ? pcm_cap * 2 : 1 << 16;
		while (cap < pcm_len + n)
		{ cap *= 2; }

		short *next = realloc(pcm_buf, cap * sizeof(short));
		if (!next)
		{ return 1; }

		pcm_buf = next;
		pcm_cap = cap;
	}

	memcpy(pcm_buf + pcm_len, wav, n * sizeof(short));
	pcm_len += n;

	return 0;
}

static int
espeak_render(const char *text, const char *voice, int rate, short **out, int *out_len)
{
	if (!text)
	{ return -1; }

	int sample_rate = espeak_Initialize(AUDIO_OUTPUT_SYNCHRONOUS, 500, NULL, 0);
	if (sample_rate <= 0)
	{ return -1; }

	espeak_SetSynthCallback(collect);

	espeak_VOICE props;
	memset(&props, 0, sizeof(props));
	props.languages = voice;
	espeak_SetVoiceByProperties(&props);

	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	pcm_buf = NULL;
	pcm_len = 0;
	pcm_cap = 0;

	espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	*out = pcm_buf;
	*out_len = pcm_len;

	return sample_rate;
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"jarvis/internal/audio"
	"jarvis/internal/speech"
)

// Espeak renders speech with libespeak-ng into memory and hands the samples
// to the shared speaker.
type Espeak struct {
	Voice string // espeak language, e.g. "en-gb"
	Rate  int    // words per minute, 0 keeps the default
}

// libespeak-ng keeps global state
var renderMu sync.Mutex

func NewEspeak(voice string, rate int) *Espeak {
	if voice == "" {
		voice = "en-gb"
	}
	return &Espeak{Voice: voice, Rate: rate}
}

func (e *Espeak) Synthesize(ctx context.Context, text string) (speech.Playback, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, rate, err := e.render(text)
	if err != nil {
		return nil, err
	}

	s, format := audio.FromPCM16(samples, rate)
	return audio.NewPlayer(s, format), nil
}

func (e *Espeak) render(text string) ([]int16, int, error) {
	renderMu.Lock()
	defer renderMu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	cvoice := C.CString(e.Voice)
	defer C.free(unsafe.Pointer(cvoice))

	var (
		buf *C.short
		n   C.int
	)

	rc := C.espeak_render(ctext, cvoice, C.int(e.Rate), &buf, &n)
	if buf != nil {
		defer C.free(unsafe.Pointer(buf))
	}
	if rc <= 0 {
		return nil, 0, fmt.Errorf("espeak_render failed: %d", int(rc))
	}
	if n == 0 {
		return nil, 0, errors.New("espeak produced no audio")
	}

	samples := make([]int16, int(n))
	copy(samples, unsafe.Slice((*int16)(unsafe.Pointer(buf)), int(n)))

	return samples, int(rc), nil
}
