// Package config loads tool configuration from a config file and
// DAYLOG_-prefixed environment variables, with defaults for every key.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"daylog/internal/vad"
)

// ConfigError reports an invalid configuration value. Processing never
// starts with an invalid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config is the full tool configuration. It marshals to the snake_case
// shape echoed into each recording's metadata record.
type Config struct {
	Tool          ToolConfig          `json:"tool"`
	Audio         AudioConfig         `json:"audio"`
	VAD           VADConfig           `json:"vad"`
	ASR           ASRConfig           `json:"asr"`
	Cluster       ClusterConfig       `json:"cluster"`
	Output        OutputConfig        `json:"output"`
	Kafka         KafkaConfig         `json:"kafka"`
	Observability ObservabilityConfig `json:"observability"`
}

// ToolConfig holds tool identity settings.
type ToolConfig struct {
	Principal string `json:"principal"`
}

// AudioConfig holds audio normalization settings.
type AudioConfig struct {
	SampleRate  int    `json:"sample_rate"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
	FFprobePath string `json:"ffprobe_path,omitempty"`
}

// VADConfig holds speech detection cascade settings.
type VADConfig struct {
	BlockSeconds          float64 `json:"block_seconds"`
	EnergyThresholdDB     float64 `json:"energy_threshold_db"`
	WindowSeconds         float64 `json:"window_seconds"`
	BandRatioThreshold    float64 `json:"band_ratio_threshold"`
	RegionMergeGapSeconds float64 `json:"region_merge_gap_seconds"`

	Classifier    string  `json:"classifier"` // silero, mock
	SileroCommand string  `json:"silero_command,omitempty"`
	Threshold     float64 `json:"threshold"`
	MinSpeechMs   int     `json:"min_speech_ms"`
	MinSilenceMs  int     `json:"min_silence_ms"`
	PaddingMs     int     `json:"padding_ms"`

	PadPre    float64 `json:"pad_pre"`
	PadPost   float64 `json:"pad_post"`
	MergeGap  float64 `json:"merge_gap"`
	MinSpeech float64 `json:"min_speech"`
}

// ASRConfig holds transcription settings.
type ASRConfig struct {
	Provider         string  `json:"provider"` // whisper, google, mock
	Language         string  `json:"language"`
	WhisperModelPath string  `json:"whisper_model_path,omitempty"`
	Threads          int     `json:"threads"`
	MaxClipSeconds   float64 `json:"max_clip_seconds"`
	Parallelism      int     `json:"parallelism"`
}

// ClusterConfig holds transcript chunk clustering settings.
type ClusterConfig struct {
	GapSeconds float64 `json:"gap_seconds"`
}

// OutputConfig holds output layout settings.
type OutputConfig struct {
	Root             string `json:"root"`
	KeepIntermediate bool   `json:"keep_intermediate"`
	Overwrite        bool   `json:"overwrite"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled       bool     `json:"enabled"`
	Brokers       []string `json:"brokers,omitempty"`
	TopicProgress string   `json:"topic_progress"`
	TopicEvents   string   `json:"topic_events"`
	Principal     string   `json:"principal"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`
	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsAddr    string `json:"metrics_addr"`
}

// Load reads configuration from the given file (optional), DAYLOG_
// environment variables, and built-in defaults, in increasing precedence
// of env over file over defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DAYLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("daylog")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/daylog")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Tool: ToolConfig{
			Principal: v.GetString("tool.principal"),
		},
		Audio: AudioConfig{
			SampleRate:  v.GetInt("audio.sample_rate"),
			FFmpegPath:  v.GetString("audio.ffmpeg_path"),
			FFprobePath: v.GetString("audio.ffprobe_path"),
		},
		VAD: VADConfig{
			BlockSeconds:          v.GetFloat64("vad.block_seconds"),
			EnergyThresholdDB:     v.GetFloat64("vad.energy_threshold_db"),
			WindowSeconds:         v.GetFloat64("vad.window_seconds"),
			BandRatioThreshold:    v.GetFloat64("vad.band_ratio_threshold"),
			RegionMergeGapSeconds: v.GetFloat64("vad.region_merge_gap_seconds"),
			Classifier:            v.GetString("vad.classifier"),
			SileroCommand:         v.GetString("vad.silero_command"),
			Threshold:             v.GetFloat64("vad.threshold"),
			MinSpeechMs:           v.GetInt("vad.min_speech_ms"),
			MinSilenceMs:          v.GetInt("vad.min_silence_ms"),
			PaddingMs:             v.GetInt("vad.padding_ms"),
			PadPre:                v.GetFloat64("vad.pad_pre"),
			PadPost:               v.GetFloat64("vad.pad_post"),
			MergeGap:              v.GetFloat64("vad.merge_gap"),
			MinSpeech:             v.GetFloat64("vad.min_speech"),
		},
		ASR: ASRConfig{
			Provider:         v.GetString("asr.provider"),
			Language:         v.GetString("asr.language"),
			WhisperModelPath: v.GetString("asr.whisper_model_path"),
			Threads:          v.GetInt("asr.threads"),
			MaxClipSeconds:   v.GetFloat64("asr.max_clip_seconds"),
			Parallelism:      v.GetInt("asr.parallelism"),
		},
		Cluster: ClusterConfig{
			GapSeconds: v.GetFloat64("cluster.gap_seconds"),
		},
		Output: OutputConfig{
			Root:             v.GetString("output.root"),
			KeepIntermediate: v.GetBool("output.keep_intermediate"),
			Overwrite:        v.GetBool("output.overwrite"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("kafka.enabled"),
			Brokers:       v.GetStringSlice("kafka.brokers"),
			TopicProgress: v.GetString("kafka.topic_progress"),
			TopicEvents:   v.GetString("kafka.topic_events"),
			Principal:     v.GetString("kafka.principal"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       v.GetString("observability.log_level"),
			LogFormat:      v.GetString("observability.log_format"),
			MetricsEnabled: v.GetBool("observability.metrics_enabled"),
			MetricsAddr:    v.GetString("observability.metrics_addr"),
		},
	}

	// Kafka principal falls back to the tool principal
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Tool.Principal
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tool.principal", "daylog-batch")

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.ffmpeg_path", "")
	v.SetDefault("audio.ffprobe_path", "")

	v.SetDefault("vad.block_seconds", 1.0)
	v.SetDefault("vad.energy_threshold_db", -50.0)
	v.SetDefault("vad.window_seconds", 0.5)
	v.SetDefault("vad.band_ratio_threshold", 0.4)
	v.SetDefault("vad.region_merge_gap_seconds", 0.5)
	v.SetDefault("vad.classifier", "mock")
	v.SetDefault("vad.silero_command", "")
	v.SetDefault("vad.threshold", 0.5)
	v.SetDefault("vad.min_speech_ms", 250)
	v.SetDefault("vad.min_silence_ms", 100)
	v.SetDefault("vad.padding_ms", 30)
	v.SetDefault("vad.pad_pre", 0.3)
	v.SetDefault("vad.pad_post", 0.3)
	v.SetDefault("vad.merge_gap", 0.6)
	v.SetDefault("vad.min_speech", 0.4)

	v.SetDefault("asr.provider", "mock")
	v.SetDefault("asr.language", "auto")
	v.SetDefault("asr.whisper_model_path", "")
	v.SetDefault("asr.threads", 4)
	v.SetDefault("asr.max_clip_seconds", 30.0)
	v.SetDefault("asr.parallelism", 2)

	v.SetDefault("cluster.gap_seconds", 15.0)

	v.SetDefault("output.root", "daylog_out")
	v.SetDefault("output.keep_intermediate", false)
	v.SetDefault("output.overwrite", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_progress", "daylog.progress")
	v.SetDefault("kafka.topic_events", "daylog.events")
	v.SetDefault("kafka.principal", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "console")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.metrics_addr", ":9090")
}

// Cascade maps the VAD section onto the detection cascade configuration.
func (c *Config) Cascade() vad.CascadeConfig {
	return vad.CascadeConfig{
		BlockSeconds:          c.VAD.BlockSeconds,
		EnergyThresholdDB:     c.VAD.EnergyThresholdDB,
		WindowSeconds:         c.VAD.WindowSeconds,
		BandRatioThreshold:    c.VAD.BandRatioThreshold,
		RegionMergeGapSeconds: c.VAD.RegionMergeGapSeconds,
		Threshold:             c.VAD.Threshold,
		MinSpeechMs:           c.VAD.MinSpeechMs,
		MinSilenceMs:          c.VAD.MinSilenceMs,
		PaddingMs:             c.VAD.PaddingMs,
		PadPreSeconds:         c.VAD.PadPre,
		PadPostSeconds:        c.VAD.PadPost,
		MergeGapSeconds:       c.VAD.MergeGap,
		MinSpeechSeconds:      c.VAD.MinSpeech,
	}
}

// Validate checks the configuration for values that would make a run
// impossible or meaningless.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return &ConfigError{Field: "audio.sample_rate", Reason: "must be positive"}
	}

	if err := c.Cascade().Validate(); err != nil {
		return err
	}

	switch c.VAD.Classifier {
	case "mock":
	case "silero":
		if c.VAD.SileroCommand == "" {
			return &ConfigError{Field: "vad.silero_command", Reason: "required for the silero classifier"}
		}
	default:
		return &ConfigError{Field: "vad.classifier", Reason: fmt.Sprintf("unknown classifier %q", c.VAD.Classifier)}
	}

	switch c.ASR.Provider {
	case "mock", "google":
	case "whisper":
		if c.ASR.WhisperModelPath == "" {
			return &ConfigError{Field: "asr.whisper_model_path", Reason: "required for the whisper provider"}
		}
		if c.Audio.SampleRate != 16000 {
			return &ConfigError{Field: "audio.sample_rate", Reason: "whisper requires 16000 Hz audio"}
		}
	default:
		return &ConfigError{Field: "asr.provider", Reason: fmt.Sprintf("unknown provider %q", c.ASR.Provider)}
	}

	if c.ASR.MaxClipSeconds <= 0 {
		return &ConfigError{Field: "asr.max_clip_seconds", Reason: "must be positive"}
	}
	if c.ASR.Parallelism < 1 {
		return &ConfigError{Field: "asr.parallelism", Reason: "must be at least 1"}
	}

	if c.Cluster.GapSeconds < 0 {
		return &ConfigError{Field: "cluster.gap_seconds", Reason: "must be non-negative"}
	}

	if c.Output.Root == "" {
		return &ConfigError{Field: "output.root", Reason: "must not be empty"}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return &ConfigError{Field: "kafka.brokers", Reason: "required when kafka is enabled"}
	}

	return nil
}
