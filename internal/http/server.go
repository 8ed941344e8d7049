package http

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"fieldseal/internal/config"
	"fieldseal/internal/domain/jobs"
	"fieldseal/internal/http/auth"
	"fieldseal/internal/http/common"
	jobhttp "fieldseal/internal/http/jobs"
	"fieldseal/internal/infra/ratelimit"
	"fieldseal/internal/repo/postgres"
	"fieldseal/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg           config.Config
	r             *gin.Engine
	service       *usecase.JobService
	authenticator common.Authenticator
	authorizer    jobs.Authorizer
	rateLimiter   ratelimit.Limiter
}

type ServerDeps struct {
	Service       *usecase.JobService
	Authenticator common.Authenticator
	Authorizer    jobs.Authorizer
	RateLimiter   ratelimit.Limiter
}

func NewServer(cfg config.Config, store *postgres.Store, gateway usecase.SealingGateway, limiter ratelimit.Limiter) *Server {
	jobRepo := postgres.NewJobRepo(store.Pool)
	photoRepo := postgres.NewPhotoRepo(store.Pool)

	service := usecase.NewJobService(jobRepo, photoRepo, gateway, cfg.SealPhaseFloor)
	return NewServerWithDeps(cfg, ServerDeps{
		Service:       service,
		Authenticator: auth.NewHeaderAuthenticator(),
		Authorizer:    auth.NewAuthorizer(),
		RateLimiter:   limiter,
	})
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		service:       deps.Service,
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
		rateLimiter:   deps.RateLimiter,
	}
	if s.authenticator == nil {
		s.authenticator = auth.NewHeaderAuthenticator()
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAuthorizer()
	}
	s.routes()
	return s
}

func (s *Server) Run() error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("fieldseal listening on %s", addr)
	return s.r.Run(addr)
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	jobHandler := jobhttp.NewHandler(s.service)

	v1 := s.r.Group("/v1")
	{
		auth := func(permission string, requireRequestID bool) gin.HandlerFunc {
			return common.AuthMiddleware(s.authenticator, s.authorizer, permission, requireRequestID)
		}

		v1.POST("/jobs", auth(jobs.PermJobWrite, true), jobHandler.HandleCreateJob)
		v1.GET("/jobs", auth(jobs.PermJobRead, false), jobHandler.HandleListJobs)
		v1.GET("/jobs/:id", auth(jobs.PermJobRead, false), jobHandler.HandleGetJob)
		v1.POST("/jobs/:id/start", auth(jobs.PermJobTransition, true), jobHandler.HandleStartJob)
		v1.POST("/jobs/:id/photos", auth(jobs.PermJobCapture, true), jobHandler.HandleAddPhoto)
		v1.POST("/jobs/:id/submit", auth(jobs.PermJobSubmit, true), s.rateLimited("jobs:submit"), jobHandler.HandleSubmitEvidence)
		v1.POST("/jobs/:id/seal/retry", auth(jobs.PermJobSubmit, true), s.rateLimited("jobs:seal-retry"), jobHandler.HandleRetrySeal)
		v1.GET("/jobs/:id/seal/verify", auth(jobs.PermJobRead, false), jobHandler.HandleVerifySeal)
	}
}

// rateLimited caps seal attempts per technician. The gateway is the expensive
// hop, so only the routes that drive the protocol are limited.
func (s *Server) rateLimited(routeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.cfg.RateLimitRequests <= 0 {
			c.Next()
			return
		}
		principal, ok := common.PrincipalFromContext(c)
		if !ok {
			c.Abort()
			return
		}
		key := fmt.Sprintf("subject:%s:endpoint:%s", principal.Subject, routeID)
		window := time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.cfg.RateLimitRequests, window)
		if err != nil {
			if s.cfg.RateLimitFailClosed {
				common.WriteErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
				return
			}
			c.Next()
			return
		}
		writeRateLimitHeaders(c, decision)
		if !decision.Allowed {
			common.WriteErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, decision ratelimit.Decision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
