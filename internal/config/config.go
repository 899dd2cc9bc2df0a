// Package config loads server configuration from the platform-native
// backend, a .env file, environment variables, and the platform secret
// store, in increasing order of precedence for the overlapping pieces.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Transcribe TranscribeConfig
	Storage    StorageConfig
	Chunking   ChunkingConfig
	Retrieval  RetrievalConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	// Token enables bearer auth on the HTTP API when non-empty.
	Token string
}

// LLMConfig points at an OpenAI-compatible API used for both chat
// completions and embeddings.
type LLMConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
}

// TranscribeConfig points at the audio transcription provider. APIKey may
// be empty, in which case audio uploads are rejected at runtime.
type TranscribeConfig struct {
	BaseURL string
	APIKey  string
}

type StorageConfig struct {
	DataDir string
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type RetrievalConfig struct {
	// TopK passages per material index, TopN after merging.
	TopK int
	TopN int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Transcribe: TranscribeConfig{
			BaseURL: "https://api.assemblyai.com/v2",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
			TopN: 6,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, then layers
// .env and environment variables (STUDYMATE_*) on top, and finally falls
// back to the platform secret store for the LLM API key.
//
// On macOS the backend is UserDefaults (domain: com.studymate.app) and
// secrets fall back to macOS Keychain. On Linux the backend is a JSON file
// at $XDG_CONFIG_HOME/studymate/config.json and secrets live in a
// restricted file under $XDG_DATA_HOME.
func Load() (Config, error) {
	// A .env file in the working directory is a convenience for local runs;
	// absence is not an error.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), secretReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get("studymate", "llm_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}
	if cfg.Transcribe.APIKey == "" {
		if key, err := kc.Get("studymate", "transcribe_api_key"); err == nil && key != "" {
			cfg.Transcribe.APIKey = key
		}
	}

	if cfg.LLM.APIKey == "" {
		msg := "missing required config: LLM API key. " +
			"Set it via environment variable STUDYMATE_LLM_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return Config{}, fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			cfg.Chunking.Overlap, cfg.Chunking.Size)
	}

	return cfg, nil
}

// secretReader reads from the platform secret store.
type secretReader struct{}

func (secretReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
