package main

import (
	"log"

	"fieldseal/internal/config"
	httpapi "fieldseal/internal/http"
	"fieldseal/internal/infra/ratelimit"
	"fieldseal/internal/infra/sealgw"
	"fieldseal/internal/repo/postgres"
)

func main() {
	cfg := config.FromEnv()
	store, err := postgres.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	gateway, err := sealgw.NewClient(cfg.SealerURL, cfg.SealerTimeout, nil)
	if err != nil {
		log.Fatalf("failed to init seal gateway: %v", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				log.Fatalf("failed to init redis rate limiter: %v", err)
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
		}
	}

	srv := httpapi.NewServer(cfg, store, gateway, limiter)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
