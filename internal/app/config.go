package app

import (
	"strings"

	"github.com/archvision/archvision-backend/internal/platform/envutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
)

type Config struct {
	Port    string
	LogMode string

	// BackendURL is the externally visible base URL, used to build public
	// media links when images are stored locally.
	BackendURL string
	MediaDir   string

	StorageMode         string
	GCSBucket           string
	StorageEmulatorHost string
	GCSPublicHost       string

	AllowedOrigins []string

	// AnalysisModels are tried in order until one returns a parseable reply.
	AnalysisModels []string

	SimilarLimit int
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:                envutil.Str("PORT", "8080"),
		LogMode:             envutil.Str("LOG_MODE", "development"),
		BackendURL:          envutil.Str("BACKEND_URL", "http://localhost:8080"),
		MediaDir:            envutil.Str("MEDIA_DIR", "media"),
		StorageMode:         envutil.Str("STORAGE_MODE", "local"),
		GCSBucket:           envutil.Str("GCS_BUCKET", ""),
		StorageEmulatorHost: envutil.Str("STORAGE_EMULATOR_HOST", ""),
		GCSPublicHost:       envutil.Str("GCS_PUBLIC_HOST", ""),
		SimilarLimit:        envutil.Int("SIMILAR_LIMIT", 10),
	}
	if origins := envutil.Str("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	cfg.AnalysisModels = splitList(envutil.Str("OPENROUTER_MODELS", ""))
	log.Info("Config loaded",
		"port", cfg.Port,
		"storage_mode", cfg.StorageMode,
		"media_dir", cfg.MediaDir,
		"similar_limit", cfg.SimilarLimit,
	)
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
