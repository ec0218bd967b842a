package config

import (
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
	"jarvis/internal/nlu"
)

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	LogLevel log.Level

	WakePhrase     string
	CommandTimeout time.Duration
	WhisperModel   string
	WhisperThreads int
	// Replay lists audio files transcribed instead of the microphone.
	Replay []string

	Voice     string
	Rate      int
	ChimePath string
	Duck      bool

	Apps nlu.AppTable

	OCRDisplay  int
	OCRLanguage string

	SpotifyWorker string
	GhostDisplay  string
	GhostScript   string

	LLMURL   string
	LLMModel string
	APIKey   string
	Proxy    string

	StatusAddr string
	SocketPath string
	BusURL     string
	Shard      string
}

// Load parses args, then fills the remaining blanks from the env file and
// the environment. Flags given explicitly always win.
func Load(args []string) (*Config, error) {
	fl := cli.NewFlagSet("jarvis-daemon", cli.ContinueOnError)

	envFile := fl.StringP("env", "e", ".env", "Env file path")
	logLevel := fl.StringP("log", "l", "info", "Log level")
	apps := fl.String("apps", "", "TOML file with extra applications")

	cfg := &Config{}
	fl.StringVar(&cfg.WakePhrase, "wake", "hey jarvis", "Wake phrase")
	fl.DurationVar(&cfg.CommandTimeout, "command-timeout", 5*time.Second, "How long to wait for a command to start")
	fl.StringVarP(&cfg.WhisperModel, "model", "m", "third_party/whisper.cpp/models/ggml-base.en.bin", "Whisper model path")
	fl.IntVar(&cfg.WhisperThreads, "threads", 0, "Whisper threads, 0 for all cores")
	fl.StringSliceVar(&cfg.Replay, "replay", nil, "Transcribe these audio files instead of the microphone")
	fl.StringVar(&cfg.Voice, "voice", "en-gb", "espeak-ng voice")
	fl.IntVar(&cfg.Rate, "rate", 165, "Speech rate in words per minute")
	fl.StringVar(&cfg.ChimePath, "chime", "", "mp3 played on a bare wake phrase")
	fl.BoolVar(&cfg.Duck, "duck", true, "Lower other audio while speaking")
	fl.IntVar(&cfg.OCRDisplay, "ocr-display", 0, "Display index used for visual confirmation")
	fl.StringVar(&cfg.OCRLanguage, "ocr-lang", "eng", "Tesseract language")
	fl.StringVar(&cfg.SpotifyWorker, "spotify-worker", "", "Spotify search worker, defaults to spotify_worker next to the binary")
	fl.StringVar(&cfg.GhostDisplay, "ghost-display", ":99", "X display of the Spotify worker")
	fl.StringVar(&cfg.GhostScript, "ghost-script", "./start_ghost.sh", "Script that starts the ghost display")
	fl.StringVar(&cfg.LLMURL, "llm-url", "", "OpenAI compatible endpoint for free-form questions")
	fl.StringVar(&cfg.LLMModel, "llm-model", "", "Model for free-form questions")
	fl.StringVarP(&cfg.Proxy, "proxy", "p", "", "Socks proxy address for the model endpoint")
	fl.StringVar(&cfg.StatusAddr, "status", "127.0.0.1:5000", "Status server address")
	fl.StringVar(&cfg.SocketPath, "socket", ipc.DefaultSocketPath, "Control socket path")
	fl.StringVarP(&cfg.BusURL, "url", "u", "", "Url of hub, empty to disable")
	fl.StringVar(&cfg.Shard, "shard", "JARVIS", "Shard name on the hub")

	if err := fl.Parse(args); err != nil {
		return nil, err
	}

	level, ok := LogLevels[strings.ToLower(*logLevel)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", *logLevel)
	}
	cfg.LogLevel = level

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("env file %s: %w", *envFile, err)
	}

	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	fromEnv(fl, "llm-url", &cfg.LLMURL, "JARVIS_LLM_URL")
	fromEnv(fl, "llm-model", &cfg.LLMModel, "JARVIS_LLM_MODEL")
	fromEnv(fl, "url", &cfg.BusURL, "BUS_URL")

	table, err := nlu.LoadApps(*apps)
	if err != nil {
		return nil, err
	}
	cfg.Apps = table

	if cfg.CommandTimeout <= 0 {
		return nil, errors.New("command timeout must be positive")
	}

	return cfg, nil
}

func fromEnv(fl *cli.FlagSet, flag string, dst *string, key string) {
	if fl.Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
