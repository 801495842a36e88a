package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-faktur/internal/auth"
	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/config"
	"github.com/noah-isme/backend-faktur/internal/customer"
	"github.com/noah-isme/backend-faktur/internal/db"
	"github.com/noah-isme/backend-faktur/internal/document"
	"github.com/noah-isme/backend-faktur/internal/health"
	"github.com/noah-isme/backend-faktur/internal/obs"
	"github.com/noah-isme/backend-faktur/internal/plan"
	"github.com/noah-isme/backend-faktur/internal/ratelimit"
	"github.com/noah-isme/backend-faktur/internal/render"
	"github.com/noah-isme/backend-faktur/internal/security"
	"github.com/noah-isme/backend-faktur/internal/tenant"
	"github.com/noah-isme/backend-faktur/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics("faktur", nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "faktur-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "faktur-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.SMTPAddr != "" {
		mailer = common.SMTPEmail{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}
	}

	profileStore := &tenant.ProfileStore{Pool: pool}
	tenantHandler := &tenant.Handler{Store: profileStore, Validate: validate}
	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.DefaultTenant)
	resolver.Directory = profileStore

	authStore := &auth.Store{Pool: pool}
	authService, err := auth.NewService(auth.Config{
		Store:           authStore,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Mailer:          mailer,
		ResetBaseURL:    cfg.ResetBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		AccessCookieName:  "faktur_access",
		RefreshCookieName: "faktur_refresh",
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: "faktur_access"}

	planStore := &plan.Store{Pool: pool}
	planHandler := &plan.Handler{Plans: planStore, Profiles: profileStore}

	docStore := document.NewStore(pool)
	docService := &document.Service{
		Store:   docStore,
		Issuers: document.ProfileIssuerSource{Profiles: profileStore},
		Quota:   plan.Quota{Plans: planStore},
	}
	renderer := &render.PDF{Assets: render.NewHTTPAssets(5 * time.Second)}
	delivery := render.Enqueuer{Client: taskClient, Queue: cfg.DeliveryQueue}

	invoiceHandler := &document.Handler{
		Svc:      docService,
		Kind:     document.KindInvoice,
		Renderer: renderer,
		Delivery: delivery,
		Validate: validate,
	}
	receiptHandler := &document.Handler{
		Svc:      docService,
		Kind:     document.KindReceipt,
		Renderer: renderer,
		Delivery: delivery,
		Validate: validate,
	}

	customerHandler := &customer.Handler{Store: &customer.Store{Pool: pool}, Validate: validate}
	ticketHandler := &ticket.Handler{Store: &ticket.Store{Pool: pool}}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := ratelimit.NewRedisStore(redisClient, "faktur:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	authLimiter := ratelimit.Handler{
		Limiter: ratelimit.New(limiterStore, cfg.AuthRateMax, cfg.AuthRateWindow),
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics("faktur", nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.CookieSecure}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.TenantHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(resolver.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := os.Getenv("SECURE_PPROF_BASIC_AUTH_USER")
		pass := os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Checker: health.Deps{Pool: pool, Redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.Use(authLimiter.Middleware)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.Post("/password/forgot", authHandler.ForgotPassword)
			a.Post("/password/reset", authHandler.ResetPassword)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Get("/plans", planHandler.List)

		v.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)

			protected.Get("/tenant/profile", tenantHandler.GetProfile)
			protected.Put("/tenant/profile", tenantHandler.UpdateProfile)

			protected.Get("/subscription", planHandler.Subscription)
			protected.Post("/subscription/upgrade", planHandler.Upgrade)

			protected.Route("/customers", func(c chi.Router) {
				c.Get("/", customerHandler.List)
				c.Post("/", customerHandler.Create)
				c.Route("/{id}", func(child chi.Router) {
					child.Get("/", customerHandler.Get)
					child.Put("/", customerHandler.Update)
					child.Delete("/", customerHandler.Delete)
				})
			})

			mountDocuments := func(prefix string, h *document.Handler) {
				protected.Route(prefix, func(d chi.Router) {
					d.Get("/", h.List)
					d.With(idem.Middleware).Post("/", h.Create)
					d.Post("/preview", h.Preview)
					d.Route("/{id}", func(child chi.Router) {
						child.Get("/", h.Get)
						child.Patch("/status", h.PatchStatus)
						child.Get("/pdf", h.PDF)
						child.Post("/send", h.Send)
					})
				})
			}
			mountDocuments("/invoices", invoiceHandler)
			mountDocuments("/receipts", receiptHandler)

			protected.Route("/tickets", func(t chi.Router) {
				t.Get("/", ticketHandler.List)
				t.Post("/", ticketHandler.Create)
				t.Get("/{id}", ticketHandler.Get)
				t.Post("/{id}/messages", ticketHandler.AddMessage)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole("admin"))
			admin.Get("/tickets", ticketHandler.AdminList)
			admin.Post("/tickets/{id}/reply", ticketHandler.AdminReply)
			admin.Post("/tickets/{id}/close", ticketHandler.AdminClose)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
