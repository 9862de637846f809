package sms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/notifications-delivery/internal/config"
)

// NewDispatcherFromConfig builds providers for every enabled entry in cfg.Providers.
func NewDispatcherFromConfig(cfg config.SMSConfig) (*Dispatcher, error) {
	var provs []Provider
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch pc.Kind {
		case config.ProviderKindHTTP:
			if strings.TrimSpace(pc.BaseURL) == "" {
				return nil, fmt.Errorf("sms provider %s: empty base_url", pc.Name)
			}
			provs = append(provs, NewHTTPProvider(
				pc.Name,
				pc.BaseURL,
				pc.SendPath,
				pc.StatusPath,
				pc.APIKey,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			))
		case config.ProviderKindKavenegar:
			p, err := NewKavenegarProvider(pc.Name, pc.APIKey, pc.Sender, pc.Breaker.FailThreshold, pc.Breaker.OpenForMs)
			if err != nil {
				return nil, fmt.Errorf("sms provider %s: %w", pc.Name, err)
			}
			provs = append(provs, p)
		default:
			return nil, fmt.Errorf("sms provider %s: unknown kind %q", pc.Name, pc.Kind)
		}
	}
	if len(provs) == 0 {
		return nil, errors.New("no sms providers enabled in config")
	}
	return NewDispatcher(provs, cfg.MaxAttempts, cfg.From, cfg.DefaultCountryCode), nil
}
