package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/ratelimit"
)

// ProvideSigner provides the access token signer.
func ProvideSigner(i do.Injector) (auth.Signer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	signer, err := auth.NewSigner(auth.SignerConfig{
		Format:   cfg.Auth.TokenFormat,
		Secret:   cfg.Auth.TokenSecret,
		TTL:      cfg.Auth.TokenTTL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Token signer ready",
		"format", cfg.Auth.TokenFormat,
		"ttl", cfg.Auth.TokenTTL,
	)

	return signer, nil
}

// ProvideLoginLimiter provides the per-username login rate limiter.
func ProvideLoginLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Auth.LoginRate, cfg.Auth.LoginBurst), nil
}
