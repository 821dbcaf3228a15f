package geocoder

import (
	"fmt"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"go.uber.org/zap"
)

// Order returns configs with the primary provider first and the rest in configuration order.
//
// An explicitly requested primary must exist. Otherwise the first provider marked primary is
// used, with a warning when more than one is marked, and with none marked the first
// configured provider is the primary.
func Order(configs []t.ProviderConfig, requested string, logger *zap.SugaredLogger) ([]t.ProviderConfig, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w, got 0", ErrTooFewProviders)
	}

	primary := -1
	if requested != "" {
		for i, c := range configs {
			if c.Name == requested {
				primary = i
				break
			}
		}
		if primary < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrimary, requested)
		}
	} else {
		var marked []string
		for i, c := range configs {
			if !c.Primary {
				continue
			}
			if primary < 0 {
				primary = i
			}
			marked = append(marked, c.Name)
		}
		if len(marked) > 1 {
			logger.Warnw("multiple providers marked primary, using the first in configuration order",
				"marked", marked, "primary", configs[primary].Name)
		}
		if primary < 0 {
			primary = 0
		}
	}

	ordered := make([]t.ProviderConfig, 0, len(configs))
	ordered = append(ordered, configs[primary])
	for i, c := range configs {
		if i != primary {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}
