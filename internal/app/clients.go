package app

import (
	"strings"

	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/openrouter"
	"github.com/archvision/archvision-backend/internal/platform/replicate"
)

// Placeholder values from sample env files count as unconfigured.
var placeholderCredentials = map[string]struct{}{
	"your_openrouter_api_key_here":  {},
	"your_replicate_api_token_here": {},
}

type Clients struct {
	// OpenRouter is nil when unconfigured; analysis then serves mock
	// features instead of calling out.
	OpenRouter openrouter.Client
	// Replicate is nil when unconfigured; generation then reports
	// unavailability.
	Replicate replicate.Client
}

func credentialConfigured(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, placeholder := placeholderCredentials[strings.ToLower(value)]
	return !placeholder
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring AI clients...")
	var clients Clients

	orCfg := openrouter.ConfigFromEnv()
	if credentialConfigured(orCfg.APIKey) {
		orClient, err := openrouter.NewClient(log, orCfg)
		if err != nil {
			return Clients{}, err
		}
		clients.OpenRouter = orClient
	} else {
		log.Warn("OPENROUTER_API_KEY not configured, image analysis will return mock features")
	}

	repCfg := replicate.ConfigFromEnv()
	if credentialConfigured(repCfg.APIToken) {
		repClient, err := replicate.NewClient(log, repCfg)
		if err != nil {
			return Clients{}, err
		}
		clients.Replicate = repClient
	} else {
		log.Warn("REPLICATE_API_TOKEN not configured, image generation will be unavailable")
	}

	return clients, nil
}
