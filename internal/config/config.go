package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CaptureConfig struct {
	Mode          string `yaml:"mode"` // exec, mock
	Command       string `yaml:"command"`
	DeviceID      string `yaml:"device_id"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	BitRate       int    `yaml:"bit_rate"`
	Extension     string `yaml:"extension"`
	MimeType      string `yaml:"mime_type"`
	TrimSilence   bool   `yaml:"trim_silence"`
	FFmpegCommand string `yaml:"ffmpeg_command"`
	SilenceFilter string `yaml:"silence_filter"`
}

type TranscriptionConfig struct {
	Provider      string `yaml:"provider"` // whisper, assembly, mock
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	MultiSpeaker  bool   `yaml:"multi_speaker"`
	MaxChunkBytes int    `yaml:"max_chunk_bytes"`
	TimeoutMS     int    `yaml:"timeout_ms"`
}

type SummarizationConfig struct {
	Provider       string  `yaml:"provider"` // openai, ollama, mock
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	OutputLanguage string  `yaml:"output_language"`
	TimeoutMS      int     `yaml:"timeout_ms"`
}

type TemplatesConfig struct {
	Directory string `yaml:"directory"`
	Active    string `yaml:"active"`
}

type NotesConfig struct {
	VaultDirectory     string `yaml:"vault_directory"`
	NoteDirectory      string `yaml:"note_directory"`
	RecordingDirectory string `yaml:"recording_directory"`
	NotePrefix         string `yaml:"note_prefix"`
	RecordingPrefix    string `yaml:"recording_prefix"`
	DateFormat         string `yaml:"date_format"`
	KeepRecordings     bool   `yaml:"keep_recordings"`
	AppendToActiveNote bool   `yaml:"append_to_active_note"`
	OnlyTranscribe     bool   `yaml:"only_transcribe"`
}

type RunStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName   string              `yaml:"runtime_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Notes         NotesConfig         `yaml:"notes"`
	RunStore      RunStoreConfig      `yaml:"run_store"`
}

func Default() Config {
	return Config{
		RuntimeName: "scribe-daemon",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:          "mock",
			SampleRate:    16000,
			Channels:      1,
			BitRate:       32000,
			Extension:     ".webm",
			MimeType:      "audio/webm",
			FFmpegCommand: "ffmpeg",
			SilenceFilter: "silenceremove=stop_periods=-1:stop_duration=0.5:stop_threshold=-35dB",
		},
		Transcription: TranscriptionConfig{
			Provider:      "mock",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "whisper-1",
			Language:      "auto",
			MaxChunkBytes: 25 * 1024 * 1024,
			TimeoutMS:     120000,
		},
		Summarization: SummarizationConfig{
			Provider:    "mock",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.5,
			MaxTokens:   4096,
			TimeoutMS:   120000,
		},
		Templates: TemplatesConfig{
			Directory: "./templates",
			Active:    "scribe",
		},
		Notes: NotesConfig{
			VaultDirectory:     "./vault",
			NoteDirectory:      "notes",
			RecordingDirectory: "recordings",
			NotePrefix:         "scribe-{{date}}-",
			RecordingPrefix:    "scribe-recording-{{date}}-",
			DateFormat:         "2006-01-02",
			KeepRecordings:     true,
		},
		RunStore: RunStoreConfig{
			Path:          "./data/scribe-runs.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxRuns:       10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SCRIBE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SCRIBE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "SCRIBE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "SCRIBE_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "SCRIBE_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.DeviceID, "SCRIBE_CAPTURE_DEVICE_ID")
	overrideInt(&cfg.Capture.SampleRate, "SCRIBE_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "SCRIBE_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.BitRate, "SCRIBE_CAPTURE_BIT_RATE")
	overrideString(&cfg.Capture.Extension, "SCRIBE_CAPTURE_EXTENSION")
	overrideString(&cfg.Capture.MimeType, "SCRIBE_CAPTURE_MIME_TYPE")
	overrideBool(&cfg.Capture.TrimSilence, "SCRIBE_CAPTURE_TRIM_SILENCE")
	overrideString(&cfg.Capture.FFmpegCommand, "SCRIBE_CAPTURE_FFMPEG_COMMAND")
	overrideString(&cfg.Capture.SilenceFilter, "SCRIBE_CAPTURE_SILENCE_FILTER")
	overrideString(&cfg.Transcription.Provider, "SCRIBE_TRANSCRIPTION_PROVIDER")
	overrideString(&cfg.Transcription.APIKey, "SCRIBE_TRANSCRIPTION_API_KEY")
	overrideString(&cfg.Transcription.BaseURL, "SCRIBE_TRANSCRIPTION_BASE_URL")
	overrideString(&cfg.Transcription.Model, "SCRIBE_TRANSCRIPTION_MODEL")
	overrideString(&cfg.Transcription.Language, "SCRIBE_TRANSCRIPTION_LANGUAGE")
	overrideBool(&cfg.Transcription.MultiSpeaker, "SCRIBE_TRANSCRIPTION_MULTI_SPEAKER")
	overrideInt(&cfg.Transcription.MaxChunkBytes, "SCRIBE_TRANSCRIPTION_MAX_CHUNK_BYTES")
	overrideInt(&cfg.Transcription.TimeoutMS, "SCRIBE_TRANSCRIPTION_TIMEOUT_MS")
	overrideString(&cfg.Summarization.Provider, "SCRIBE_SUMMARIZATION_PROVIDER")
	overrideString(&cfg.Summarization.APIKey, "SCRIBE_SUMMARIZATION_API_KEY")
	overrideString(&cfg.Summarization.BaseURL, "SCRIBE_SUMMARIZATION_BASE_URL")
	overrideString(&cfg.Summarization.Model, "SCRIBE_SUMMARIZATION_MODEL")
	overrideFloat(&cfg.Summarization.Temperature, "SCRIBE_SUMMARIZATION_TEMPERATURE")
	overrideInt(&cfg.Summarization.MaxTokens, "SCRIBE_SUMMARIZATION_MAX_TOKENS")
	overrideString(&cfg.Summarization.OutputLanguage, "SCRIBE_SUMMARIZATION_OUTPUT_LANGUAGE")
	overrideInt(&cfg.Summarization.TimeoutMS, "SCRIBE_SUMMARIZATION_TIMEOUT_MS")
	overrideString(&cfg.Templates.Directory, "SCRIBE_TEMPLATES_DIRECTORY")
	overrideString(&cfg.Templates.Active, "SCRIBE_TEMPLATES_ACTIVE")
	overrideString(&cfg.Notes.VaultDirectory, "SCRIBE_NOTES_VAULT_DIRECTORY")
	overrideString(&cfg.Notes.NoteDirectory, "SCRIBE_NOTES_NOTE_DIRECTORY")
	overrideString(&cfg.Notes.RecordingDirectory, "SCRIBE_NOTES_RECORDING_DIRECTORY")
	overrideString(&cfg.Notes.NotePrefix, "SCRIBE_NOTES_NOTE_PREFIX")
	overrideString(&cfg.Notes.RecordingPrefix, "SCRIBE_NOTES_RECORDING_PREFIX")
	overrideString(&cfg.Notes.DateFormat, "SCRIBE_NOTES_DATE_FORMAT")
	overrideBool(&cfg.Notes.KeepRecordings, "SCRIBE_NOTES_KEEP_RECORDINGS")
	overrideBool(&cfg.Notes.AppendToActiveNote, "SCRIBE_NOTES_APPEND_TO_ACTIVE_NOTE")
	overrideBool(&cfg.Notes.OnlyTranscribe, "SCRIBE_NOTES_ONLY_TRANSCRIBE")
	overrideString(&cfg.RunStore.Path, "SCRIBE_RUN_STORE_PATH")
	overrideString(&cfg.RunStore.RetentionMode, "SCRIBE_RUN_STORE_RETENTION_MODE")
	overrideInt(&cfg.RunStore.RetentionDays, "SCRIBE_RUN_STORE_RETENTION_DAYS")
	overrideInt(&cfg.RunStore.MaxRuns, "SCRIBE_RUN_STORE_MAX_RUNS")
	overrideBool(&cfg.RunStore.VacuumOnStart, "SCRIBE_RUN_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Mode {
	case "exec", "mock":
	default:
		return errors.New("capture.mode must be one of exec|mock")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when mode=exec")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.TrimSilence {
		if cfg.Capture.FFmpegCommand == "" {
			return errors.New("capture.ffmpeg_command must be set when trim_silence is enabled")
		}
		if cfg.Capture.SilenceFilter == "" {
			return errors.New("capture.silence_filter must be set when trim_silence is enabled")
		}
	}
	switch cfg.Transcription.Provider {
	case "whisper", "assembly", "mock":
	default:
		return errors.New("transcription.provider must be one of whisper|assembly|mock")
	}
	if cfg.Transcription.Provider != "mock" && cfg.Transcription.APIKey == "" {
		return fmt.Errorf("transcription.api_key must be set for provider %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.MaxChunkBytes <= 0 {
		return errors.New("transcription.max_chunk_bytes must be positive")
	}
	switch cfg.Summarization.Provider {
	case "openai", "gemini", "ollama", "mock":
	default:
		return errors.New("summarization.provider must be one of openai|gemini|ollama|mock")
	}
	switch cfg.Summarization.Provider {
	case "openai", "gemini":
		if cfg.Summarization.APIKey == "" {
			return fmt.Errorf("summarization.api_key must be set for provider %q", cfg.Summarization.Provider)
		}
	}
	if cfg.Summarization.MaxTokens < 0 {
		return errors.New("summarization.max_tokens must be >= 0")
	}
	if cfg.Templates.Directory == "" {
		return errors.New("templates.directory must not be empty")
	}
	if cfg.Templates.Active == "" {
		return errors.New("templates.active must not be empty")
	}
	if cfg.Notes.VaultDirectory == "" {
		return errors.New("notes.vault_directory must not be empty")
	}
	if cfg.Notes.DateFormat == "" {
		return errors.New("notes.date_format must not be empty")
	}
	if cfg.RunStore.Path == "" {
		return errors.New("run_store.path must not be empty")
	}
	switch cfg.RunStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("run_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.RunStore.RetentionDays < 0 {
		return errors.New("run_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
