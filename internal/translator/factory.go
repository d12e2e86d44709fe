package translator

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Build constructs the services named in order. Unknown names are an error so
// a typo in the config does not silently drop a service.
func Build(names []string, configs map[string]ServiceConfig, logger *logrus.Logger) ([]TranslationService, error) {
	var list []TranslationService

	for _, name := range names {
		cfg := configs[name]
		switch name {
		case "google":
			list = append(list, NewGoogleService(cfg))
		case "mymemory":
			list = append(list, NewMyMemoryService(cfg))
		case "libretranslate":
			list = append(list, NewLibreTranslateService(cfg, logger))
		case "llm":
			if cfg.APIKey == "" && cfg.BaseURL == "" {
				return nil, fmt.Errorf("llm translation service requires api_key or base_url")
			}
			list = append(list, NewLLMService(cfg, logger))
		default:
			return nil, fmt.Errorf("unknown translation service %q", name)
		}
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no translation services configured")
	}
	return list, nil
}
