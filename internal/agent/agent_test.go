package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/cancel"
	"jarvis/internal/nlu"
	"jarvis/internal/speech"
	"jarvis/internal/status"
	"jarvis/internal/vision"
)

const wake = "hey jarvis"

// scriptedListener hands out wakes and commands in order and stops the run
// once it is out of wakes. It publishes the same phases as listen.Stage.
type scriptedListener struct {
	status   *status.Channel
	stop     context.CancelFunc
	wakes    []string
	commands []string
}

func (l *scriptedListener) WaitForWake(ctx context.Context) (string, error) {
	l.status.Publish(status.Hidden)
	if len(l.wakes) == 0 {
		l.stop()
		<-ctx.Done()
		return "", ctx.Err()
	}
	w := l.wakes[0]
	l.wakes = l.wakes[1:]
	return w, nil
}

func (l *scriptedListener) StripWake(heard string) nlu.Command {
	return nlu.Normalize(strings.ReplaceAll(heard, wake, ""))
}

func (l *scriptedListener) Command(context.Context) (nlu.Command, bool) {
	l.status.Publish(status.Listening)
	if len(l.commands) == 0 {
		return "", false
	}
	c := l.commands[0]
	l.commands = l.commands[1:]
	l.status.Publish(status.Thinking)
	return nlu.Normalize(c), true
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []string
}

func (s *recordingSpeaker) Say(_ context.Context, text string) speech.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
	return speech.Spoken
}

type recordingDesktop struct {
	calls     []string
	launchErr error
	searchErr error
	panics    bool
}

func (d *recordingDesktop) record(format string, args ...any) {
	if d.panics {
		panic("desktop exploded")
	}
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *recordingDesktop) SetVolume(_ context.Context, p int) error {
	d.record("volume %d", p)
	return nil
}

func (d *recordingDesktop) StepVolume(_ context.Context, delta int) error {
	d.record("step %+d", delta)
	return nil
}

func (d *recordingDesktop) SetMute(_ context.Context, muted bool) error {
	d.record("mute %v", muted)
	return nil
}

func (d *recordingDesktop) Media(_ context.Context, verb, player string) error {
	d.record("media %s %s", verb, player)
	return nil
}

func (d *recordingDesktop) Launch(_ context.Context, command string) error {
	d.record("launch %s", command)
	return d.launchErr
}

func (d *recordingDesktop) SearchSpotify(_ context.Context, q string) error {
	d.record("search %s", q)
	return d.searchErr
}

type scriptedScreen struct {
	texts []string
	calls int
}

func (s *scriptedScreen) CaptureText(context.Context) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.texts) {
		return s.texts[i], nil
	}
	return "", errors.New("no frame")
}

type fakeDelegate struct {
	reply string
	err   error
	got   []string
	// block waits for ctx, raising token first when set
	block bool
	token *cancel.Token
}

func (d *fakeDelegate) Delegate(ctx context.Context, text string) (string, error) {
	d.got = append(d.got, text)
	if d.block {
		if d.token != nil {
			d.token.Raise()
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return d.reply, d.err
}

type countingChime struct{ n int }

func (c *countingChime) Chime(context.Context) error {
	c.n++
	return nil
}

type harness struct {
	agent    *Agent
	ctx      context.Context
	listener *scriptedListener
	speaker  *recordingSpeaker
	desktop  *recordingDesktop
	screen   *scriptedScreen
	delegate *fakeDelegate
	chime    *countingChime
	status   *status.Channel
	sub      *status.Subscription
	token    *cancel.Token
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)

	ch := status.NewChannel(64)
	h := &harness{
		ctx:      ctx,
		listener: &scriptedListener{status: ch, stop: stop},
		speaker:  &recordingSpeaker{},
		desktop:  &recordingDesktop{},
		screen:   &scriptedScreen{},
		delegate: &fakeDelegate{},
		chime:    &countingChime{},
		status:   ch,
		sub:      ch.Subscribe(),
		token:    cancel.New(),
	}

	clock := func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	poller := vision.NewPoller(h.screen, vision.WithSleep(func(context.Context, time.Duration) error { return nil }))

	a, err := New(Deps{
		Listener:  h.listener,
		Speaker:   h.speaker,
		Confirmer: poller,
		Delegate:  h.delegate,
		Chime:     h.chime,
		Desktop:   h.desktop,
		Router:    nlu.NewRouter(nlu.DefaultApps(), nlu.WithClock(clock)),
		Status:    ch,
		Token:     h.token,
	})
	require.NoError(t, err)
	a.watchTick = time.Millisecond
	h.agent = a

	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	err := h.agent.Run(h.ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func (h *harness) phases() []status.Phase {
	var out []status.Phase
	for {
		select {
		case ev := <-h.sub.C():
			out = append(out, ev.Phase)
		default:
			return out
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestVolumeSet(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis set volume to 45"}
	h.run(t)

	assert.Equal(t, []string{"mute false", "volume 45"}, h.desktop.calls)
	assert.Equal(t, []string{"Volume set to 45 percent."}, h.speaker.said)
	assert.Equal(t, []status.Phase{
		status.Idle, status.Hidden, status.Thinking, status.Hidden,
		status.Idle, status.Hidden,
	}, h.phases())
}

func TestArithmetic(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis what is 12 times 3"}
	h.run(t)

	assert.Equal(t, []string{"The result is 36"}, h.speaker.said)
	assert.Empty(t, h.desktop.calls)
}

func TestMalformedArithmeticIsSilent(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis calculate the meaning of life"}
	h.run(t)

	assert.Empty(t, h.speaker.said)
	assert.Empty(t, h.delegate.got)
}

func TestAppLaunchConfirmedOnSecondAttempt(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis open terminal"}
	h.screen.texts = []string{"desktop", "heitor@box: ~"}
	h.run(t)

	assert.Equal(t, []string{"launch gnome-terminal"}, h.desktop.calls)
	assert.Equal(t, []string{"Checking visual feed...", "I see heitor."}, h.speaker.said)
	assert.Equal(t, 2, h.screen.calls)
}

func TestAppLaunchNotConfirmed(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis open files"}
	h.run(t)

	assert.Equal(t, vision.Attempts, h.screen.calls)
	assert.Equal(t, []string{
		"Checking visual feed...",
		"I opened it, but I don't see the home window yet.",
	}, h.speaker.said)
}

func TestAppLaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis launch spotify"}
	h.desktop.launchErr = errors.New("no shell")
	h.run(t)

	assert.Equal(t, []string{"I couldn't launch spotify."}, h.speaker.said)
	assert.Zero(t, h.screen.calls)
}

func TestWakeOnlyThenTimeout(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis"}
	h.run(t)

	assert.Equal(t, 1, h.chime.n)
	assert.Equal(t, []string{"Yes?"}, h.speaker.said)
	assert.Empty(t, h.desktop.calls)
	assert.Empty(t, h.delegate.got)
	assert.Equal(t, []status.Phase{
		status.Idle, status.Hidden, status.Listening, status.Hidden,
		status.Idle, status.Hidden,
	}, h.phases())
}

func TestWakeOnlyThenCommand(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"Hey, Jarvis!"}
	h.listener.commands = []string{"Mute."}
	h.run(t)

	assert.Equal(t, []string{"mute true"}, h.desktop.calls)
	assert.Equal(t, []string{"Yes?", "Muted."}, h.speaker.said)
}

func TestSeveralCycles(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{
		"hey jarvis volume up",
		"hey jarvis pause the music",
		"hey jarvis skip",
		"hey jarvis resume",
	}
	h.run(t)

	assert.Equal(t, []string{
		"mute false", "step +10",
		"media pause spotify",
		"media next ",
		"media play ",
	}, h.desktop.calls)
	assert.Equal(t, []string{"Volume up.", "Pausing Spotify.", "Next."}, h.speaker.said)
}

func TestSpotifySearch(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis play bohemian rhapsody on spotify"}
	h.desktop.searchErr = errors.New("worker missing")
	h.run(t)

	assert.Equal(t, []string{"search bohemian rhapsody"}, h.desktop.calls)
	assert.Equal(t, []string{"Queuing bohemian rhapsody", "I couldn't start the background task."}, h.speaker.said)
}

func TestFreeForm(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis tell me a joke"}
	h.delegate.reply = "I would, but my timing is off."
	h.run(t)

	assert.Equal(t, []string{"(System: Time is 10:30) tell me a joke"}, h.delegate.got)
	assert.Equal(t, []string{"I would, but my timing is off."}, h.speaker.said)
}

func TestFreeFormCancelledByToken(t *testing.T) {
	h := newHarness(t)
	h.listener.wakes = []string{"hey jarvis write me a poem"}
	h.delegate.block = true
	h.delegate.token = h.token
	h.run(t)

	assert.Len(t, h.delegate.got, 1)
	assert.Empty(t, h.speaker.said)
	// the next cycle starts with a cleared token
	assert.False(t, h.token.Raised())
}

func TestFreeFormSkippedWhenRaised(t *testing.T) {
	h := newHarness(t)
	h.token.Raise()

	err := h.agent.Dispatch(context.Background(), nlu.FreeForm{Text: "anything"})
	require.NoError(t, err)
	assert.Empty(t, h.delegate.got)
}

func TestDispatchRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.desktop.panics = true

	err := h.agent.Dispatch(context.Background(), nlu.Volume{Op: nlu.VolumeMute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "desktop exploded")
}

func TestPanicDoesNotStopTheLoop(t *testing.T) {
	h := newHarness(t)
	h.desktop.panics = true
	h.listener.wakes = []string{"hey jarvis mute", "hey jarvis what is 2 plus 2"}
	h.run(t)

	assert.Equal(t, []string{"The result is 4"}, h.speaker.said)
}

type triggerableListener struct {
	scriptedListener
	triggered int
}

func (l *triggerableListener) Trigger() { l.triggered++ }

func TestControl(t *testing.T) {
	h := newHarness(t)

	phase, err := h.agent.Control("status")
	require.NoError(t, err)
	assert.Equal(t, "HIDDEN", phase)

	_, err = h.agent.Control("stop")
	require.NoError(t, err)
	assert.True(t, h.token.Raised())

	_, err = h.agent.Control("dance")
	assert.Error(t, err)

	// scriptedListener has no manual trigger
	_, err = h.agent.Control("wake")
	assert.Error(t, err)

	l := &triggerableListener{}
	h.agent.Listener = l
	h.token.Clear()

	_, err = h.agent.Control("WAKE")
	require.NoError(t, err)
	assert.Equal(t, 1, l.triggered)
	assert.True(t, h.token.Raised())
}

// waitingListener blocks in WaitForWake until triggered, like listen.Stage.
type waitingListener struct {
	scriptedListener
	waiting chan struct{}
	manual  chan struct{}
	woken   bool
}

func (l *waitingListener) Trigger() {
	select {
	case l.manual <- struct{}{}:
	default:
	}
}

func (l *waitingListener) WaitForWake(ctx context.Context) (string, error) {
	l.status.Publish(status.Hidden)
	if l.woken {
		l.stop()
		<-ctx.Done()
		return "", ctx.Err()
	}
	close(l.waiting)
	select {
	case <-l.manual:
		l.woken = true
		return wake, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type instantPlayback struct{}

func (instantPlayback) Play() error  { return nil }
func (instantPlayback) Active() bool { return false }
func (instantPlayback) Stop()        {}

type recordingSynth struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSynth) Synthesize(_ context.Context, text string) (speech.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return instantPlayback{}, nil
}

func (s *recordingSynth) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func TestManualWakeWhileIdleSpeaks(t *testing.T) {
	h := newHarness(t)

	l := &waitingListener{
		scriptedListener: scriptedListener{status: h.status, stop: h.listener.stop},
		waiting:          make(chan struct{}),
		manual:           make(chan struct{}, 1),
	}
	l.commands = []string{"what is 2 plus 2"}
	synth := &recordingSynth{}

	h.agent.Listener = l
	h.agent.Speaker = speech.NewOutput(synth, h.status, h.token, speech.WithSleep(func(time.Duration) {}))

	done := make(chan error, 1)
	go func() { done <- h.agent.Run(h.ctx) }()

	select {
	case <-l.waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("agent never waited for wake")
	}

	_, err := h.agent.Control("wake")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not finish the cycle")
	}

	assert.Equal(t, []string{"Yes?", "The result is 4"}, synth.said())
	assert.False(t, h.token.Raised())
}
