package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"jarvis/internal/actuator"
	"jarvis/internal/agent"
	"jarvis/internal/audio"
	"jarvis/internal/brain"
	"jarvis/internal/cancel"
	"jarvis/internal/config"
	"jarvis/internal/ipc"
	"jarvis/internal/listen"
	"jarvis/internal/nlu"
	"jarvis/internal/notify"
	"jarvis/internal/proxy"
	"jarvis/internal/relay"
	"jarvis/internal/speech"
	"jarvis/internal/status"
	"jarvis/internal/tts"
	"jarvis/internal/vision"
	"jarvis/pkg/protocol"
	"jarvis/pkg/stt"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}

	log.Info("Shut down")
}

func run(ctx context.Context, cfg *config.Config) error {
	ch := status.NewChannel(status.DefaultDepth)
	token := cancel.New()

	whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
		Threads:       cfg.WhisperThreads,
		InitialPrompt: cfg.WakePhrase,
	})
	if err != nil {
		return fmt.Errorf("init whisper: %w", err)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper", "model", cfg.WhisperModel)

	var tr listen.Transcriber
	stageOpts := []listen.Option{
		listen.WithWakePhrase(cfg.WakePhrase),
		listen.WithCommandTimeout(cfg.CommandTimeout),
	}

	if len(cfg.Replay) > 0 {
		log.Info("Replaying recorded audio", "files", len(cfg.Replay))
		tr = listen.NewReplay(cfg.Replay, whisper)
	} else {
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			return fmt.Errorf("init audio: %w", err)
		}
		defer rec.Close()

		mic := listen.NewMic(rec, whisper)
		tr = mic
		stageOpts = append(stageOpts, listen.WithCalibrator(mic))

		log.Debug("Loaded recorder")
	}

	stage := listen.NewStage(tr, ch, stageOpts...)

	runner := actuator.ExecRunner{}
	speechOpts := []speech.Option{}
	if cfg.Duck {
		speechOpts = append(speechOpts, speech.WithDucker(actuator.NewDucker(runner, []string{"jarvis", "espeak"}, 5)))
	}
	out := speech.NewOutput(tts.NewEspeak(cfg.Voice, cfg.Rate), ch, token, speechOpts...)

	httpClient, err := proxy.NewClient(cfg.Proxy, 120*time.Second)
	if err != nil {
		return fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
	}
	delegate := brain.New(brain.Config{
		BaseURL:    cfg.LLMURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.LLMModel,
		HTTPClient: httpClient,
	})

	worker := cfg.SpotifyWorker
	if worker == "" {
		worker = actuator.WorkerNextTo("spotify_worker")
	}
	desktop := actuator.NewDesktop(runner, actuator.DesktopConfig{
		SpotifyWorker: worker,
		GhostDisplay:  cfg.GhostDisplay,
		GhostScript:   cfg.GhostScript,
	})
	if err := desktop.EnsureGhost(ctx); err != nil {
		log.Warn("Ghost display unavailable, spotify search will fail", "err", err)
	}

	a, err := agent.New(agent.Deps{
		Listener:  stage,
		Speaker:   out,
		Confirmer: vision.NewPoller(vision.NewTesseract(cfg.OCRDisplay, cfg.OCRLanguage)),
		Delegate:  delegate,
		Chime:     notify.NewChime(cfg.ChimePath),
		Desktop:   desktop,
		Router:    nlu.NewRouter(cfg.Apps),
		Status:    ch,
		Token:     token,
	})
	if err != nil {
		return err
	}

	srv := relay.NewServer(ch)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
			log.Error("Status server failed", "addr", cfg.StatusAddr, "err", err)
		}
	}()

	if cfg.BusURL != "" {
		startHub(ctx, cfg, ch, a)
	}

	if err := ipc.StartServer(ctx, cfg.SocketPath, func(msg ipc.ControlMessage) ipc.Reply {
		phase, err := a.Control(msg.Cmd)
		if err != nil {
			log.Warn("Bad control command", "cmd", msg.Cmd, "err", err)
			return ipc.Reply{Error: err.Error()}
		}
		return ipc.Reply{OK: true, Status: phase}
	}); err != nil {
		return fmt.Errorf("ipc server: %w", err)
	}

	log.Info("Boot up - successful", "wake", stage.WakePhrase(), "status", cfg.StatusAddr, "socket", cfg.SocketPath)

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// startHub mirrors the status to the hub and accepts WAKE and STOP from it.
// A hub that is down at boot is not fatal.
func startHub(ctx context.Context, cfg *config.Config, ch *status.Channel, a *agent.Agent) {
	ptcl, err := protocol.NewProtocol(protocol.PtclConfig{
		Shard:  cfg.Shard,
		Url:    cfg.BusURL,
		Reconn: 2 * time.Second,
		EmitOut: func(m *protocol.Message) {
			if m.Verb != "CMD" {
				return
			}
			if _, err := a.Control(m.Noun); err != nil {
				log.Warn("Bad hub command", "msg", m.String(), "err", err)
			}
		},
	})
	if err != nil {
		log.Warn("Hub unavailable, continuing without it", "url", cfg.BusURL, "err", err)
		return
	}

	go ptcl.Run(ctx)
	go relay.NewHub(ptcl, ch).Run(ctx)

	log.Info("Connected to hub", "url", cfg.BusURL, "shard", cfg.Shard)
}
