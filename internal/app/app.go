// Package app wires configuration into the concrete pipeline backends and
// owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"daylog/internal/asr"
	asrgoogle "daylog/internal/asr/google"
	asrmock "daylog/internal/asr/mock"
	"daylog/internal/asr/whisper"
	"daylog/internal/config"
	"daylog/internal/events"
	"daylog/internal/media"
	"daylog/internal/observability"
	"daylog/internal/observability/logging"
	"daylog/internal/vad"
	vadmock "daylog/internal/vad/mock"
	"daylog/internal/vad/silero"
)

// Application holds process-wide state for one invocation.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Converter   *media.Converter
	Classifier  vad.Classifier
	Transcriber asr.Transcriber
	Publisher   *events.Publisher

	metricsServer *observability.Server
}

// New constructs an Application from a validated configuration and sets up
// global logging.
func New(cfg *config.Config) *Application {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	a.Logger.Info().Msg("daylog application created")
	return a
}

// Start builds the configured backends. It must be called before any
// recording is processed.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()

	a.Converter = &media.Converter{
		FFmpegPath:  a.Cfg.Audio.FFmpegPath,
		FFprobePath: a.Cfg.Audio.FFprobePath,
	}

	classifier, err := a.buildClassifier()
	if err != nil {
		return err
	}
	a.Classifier = classifier

	transcriber, err := a.buildTranscriber(ctx)
	if err != nil {
		return err
	}
	a.Transcriber = transcriber

	a.Publisher = events.New(&events.Config{
		Brokers:       a.Cfg.Kafka.Brokers,
		TopicProgress: a.Cfg.Kafka.TopicProgress,
		TopicEvents:   a.Cfg.Kafka.TopicEvents,
		Principal:     a.Cfg.Kafka.Principal,
		Enabled:       a.Cfg.Kafka.Enabled,
	})

	if a.Cfg.Observability.MetricsEnabled {
		a.metricsServer = observability.NewServer(a.Cfg.Observability.MetricsAddr)
		a.metricsServer.Start()
	}

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("classifier", a.Classifier.Name()).
		Str("transcriber", a.Transcriber.Name()).
		Msg("daylog starting")

	return nil
}

func (a *Application) buildClassifier() (vad.Classifier, error) {
	switch a.Cfg.VAD.Classifier {
	case "silero":
		return silero.New(a.Cfg.VAD.SileroCommand)
	case "mock":
		return &vadmock.Classifier{}, nil
	default:
		return nil, fmt.Errorf("app: unknown vad classifier %q", a.Cfg.VAD.Classifier)
	}
}

func (a *Application) buildTranscriber(ctx context.Context) (asr.Transcriber, error) {
	switch a.Cfg.ASR.Provider {
	case "whisper":
		return whisper.New(a.Cfg.ASR.WhisperModelPath, whisper.WithThreads(a.Cfg.ASR.Threads))
	case "google":
		return asrgoogle.New(ctx)
	case "mock":
		return &asrmock.Transcriber{}, nil
	default:
		return nil, fmt.Errorf("app: unknown asr provider %q", a.Cfg.ASR.Provider)
	}
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("daylog shutting down")

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Error closing publisher")
		}
	}
	if closer, ok := a.Transcriber.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Error closing transcriber")
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("Error shutting down metrics server")
		}
	}
}
