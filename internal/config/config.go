package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Dimensions is the output frame size of a video format.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Voice maps a user-facing voice name to its ElevenLabs voice id.
type Voice struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type Config struct {
	// Server
	Host               string
	APIPort            string
	AppEnv             string
	LogLevel           string
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *)

	// Database
	DatabaseURL string

	// Filesystem layout
	OutputDir string
	TempDir   string

	// Job store
	JobStore     string // "file" or "redis"
	JobQueueFile string
	RedisURL     string
	RedisJobKey  string

	// OpenAI (prompts, subtitle segmentation, fallback TTS, DALL-E)
	OpenAIKey     string
	PromptModel   string
	SubtitleModel string

	// Gemini (primary image provider)
	GeminiKey        string
	GeminiImageModel string

	// ElevenLabs (primary TTS provider)
	ElevenLabsKey string

	// Cartesia (last-resort TTS provider, optional)
	CartesiaKey     string
	CartesiaURL     string
	CartesiaVoiceID string

	// Generation
	DefaultVoice    string
	ImageCount      int // 0 = derive from script length
	MaxScriptLength int
	DefaultFPS      int
	VideoFormats    map[string]Dimensions
	VideoStyles     []string
	Voices          []Voice

	// Worker
	WorkerEnabled      bool
	WorkerPollInterval time.Duration
	JobRetentionDays   int
}

// DefaultVideoFormats lists the supported aspect ratios and their frame sizes.
func DefaultVideoFormats() map[string]Dimensions {
	return map[string]Dimensions{
		"9:16": {Width: 1080, Height: 1920},
		"16:9": {Width: 1920, Height: 1080},
		"1:1":  {Width: 1080, Height: 1080},
	}
}

func DefaultVideoStyles() []string {
	return []string{
		"Realistic Action Art",
		"B&W Sketch",
		"Comic Noir",
		"Retro Noir",
		"Medieval Painting",
		"Anime",
		"Warm Fable",
		"Hyper Realistic",
		"3D Cartoon",
		"Caricature",
	}
}

func DefaultVoices() []Voice {
	return []Voice{
		{Name: "Zara", ID: "XB0fDUnXU5powFXDhCwa"},
		{Name: "Shelby", ID: "EXAVITQu4vr4xnSDxMaL"},
		{Name: "James", ID: "ZQe5CZNOzWyzPSCn5a3c"},
		{Name: "B.Giffen", ID: "N2lVS1w4EtoT3dr4eOWO"},
		{Name: "Adam", ID: "pNInz6obpgDQGcFmaJgB"},
		{Name: "Lulu Lollipop", ID: "EXAVITQu4vr4xnSDxMaL"},
	}
}

// Load reads the environment and validates the result for the API process.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from the environment and an optional .env file
// without validating it.
func Read() *Config {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	outputDir := getEnv("OUTPUT_DIR", "outputs")

	cfg := &Config{
		Host:               getEnv("HOST", "0.0.0.0"),
		APIPort:            getEnv("PORT", "5000"),
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		OutputDir:          outputDir,
		TempDir:            getEnv("TEMP_DIR", "temp"),
		JobStore:           getEnv("JOB_STORE", "file"),
		JobQueueFile:       getEnv("JOB_QUEUE_FILE", filepath.Join(outputDir, "job_queue.json")),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisJobKey:        getEnv("REDIS_JOB_KEY", "clipforge:job_queue"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		PromptModel:        getEnv("PROMPT_MODEL", "gpt-4"),
		SubtitleModel:      getEnv("SUBTITLE_MODEL", "gpt-4o-mini"),
		GeminiKey:          getEnv("GOOGLE_API_KEY", ""),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		ElevenLabsKey:      getEnv("ELEVENLABS_API_KEY", ""),
		CartesiaKey:        getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:        getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:    getEnv("CARTESIA_VOICE_ID", ""),
		DefaultVoice:       getEnv("DEFAULT_VOICE", "Zara"),
		ImageCount:         getEnvInt("IMAGE_COUNT", 0),
		MaxScriptLength:    getEnvInt("MAX_SCRIPT_LENGTH", 1500),
		DefaultFPS:         getEnvInt("DEFAULT_FPS", 30),
		VideoFormats:       DefaultVideoFormats(),
		VideoStyles:        DefaultVideoStyles(),
		Voices:             DefaultVoices(),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		JobRetentionDays:   getEnvInt("JOB_RETENTION_DAYS", 7),
	}

	return cfg
}

// Validate checks the cross-field requirements of a loaded configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// At least one narration provider must be configured
	if c.ElevenLabsKey == "" && c.OpenAIKey == "" && c.CartesiaKey == "" {
		return fmt.Errorf("one of ELEVENLABS_API_KEY, OPENAI_API_KEY or CARTESIA_API_KEY is required for narration")
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if _, ok := c.VoiceID(c.DefaultVoice); !ok {
		return fmt.Errorf("DEFAULT_VOICE %q is not a known voice", c.DefaultVoice)
	}

	if c.MaxScriptLength <= 0 {
		return fmt.Errorf("MAX_SCRIPT_LENGTH must be positive")
	}
	if c.DefaultFPS <= 0 {
		return fmt.Errorf("DEFAULT_FPS must be positive")
	}
	if c.ImageCount < 0 {
		return fmt.Errorf("IMAGE_COUNT must not be negative")
	}

	return nil
}

// ValidateStore checks only the job store settings.
func (c *Config) ValidateStore() error {
	switch c.JobStore {
	case "file":
		if c.JobQueueFile == "" {
			return fmt.Errorf("JOB_QUEUE_FILE is required when JOB_STORE=file")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when JOB_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported JOB_STORE %q (expected file or redis)", c.JobStore)
	}
	return nil
}

// VoiceID resolves a voice name to its provider id.
func (c *Config) VoiceID(name string) (string, bool) {
	for _, v := range c.Voices {
		if v.Name == name {
			return v.ID, true
		}
	}
	return "", false
}

func (c *Config) HasStyle(style string) bool {
	for _, s := range c.VideoStyles {
		if s == style {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
