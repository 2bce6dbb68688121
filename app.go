package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docflow/docflow/server/handlers"
	"github.com/docflow/docflow/server/internal/config"
	"github.com/docflow/docflow/server/internal/database"
	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/document/handler"
	"github.com/docflow/docflow/server/internal/document/repository"
	"github.com/docflow/docflow/server/internal/document/service"
	"github.com/docflow/docflow/server/internal/oidc"
	"github.com/docflow/docflow/server/internal/sessions"
	"github.com/docflow/docflow/server/internal/storage"
	"github.com/docflow/docflow/server/internal/tokens"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

// app holds the wired services for one server process.
type app struct {
	cfg      *config.Config
	redis    *redis.Client
	mongo    *mongo.Client
	store    string
	objects  *storage.MinIOStorage
	users    *users.Service
	sessions *sessions.Service
	docs     service.Service
	verifier middleware.Verifier
}

// newApp connects the configured backends. Redis and MinIO are optional and
// degrade with a warning; a configured MongoDB that stays unreachable is an
// error. Without MONGODB_URI all stores live in memory.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, store: "memory"}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unavailable, continuing without it: %v", addr, err)
			_ = client.Close()
		} else {
			a.redis = client
			sessions.SetBlacklistClient(client)
			logger.Infof("connected to redis %s", addr)
		}
	}

	var (
		docRepo  repository.Repository = repository.NewMemoryRepo()
		userRepo users.UserRepository  = users.NewMemoryUserRepository()
		sessRepo sessions.Repository   = sessions.NewMemoryRepository()
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.Retries, time.Second, func(ctx context.Context) (*mongo.Client, error) {
			return database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		a.mongo = client
		a.store = "mongo"
		db := client.Database(cfg.MongoDB.Database)

		dr := repository.NewMongoRepo(db.Collection("documents"))
		ur := users.NewMongoUserRepository(db.Collection("users"))
		sr := sessions.NewMongoRepository(db.Collection("sessions"))
		for name, ensure := range map[string]func(context.Context) error{
			"documents": dr.EnsureIndexes,
			"users":     ur.EnsureIndexes,
			"sessions":  sr.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				a.close()
				return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
			}
		}
		docRepo, userRepo, sessRepo = dr, ur, sr
	} else {
		logger.Warnf("MONGODB_URI not set; documents and users are kept in memory")
	}
	if a.redis != nil {
		sessRepo = sessions.NewRedisRepository(a.redis, "session:")
	}

	a.users = users.NewService(userRepo)
	a.sessions = sessions.NewService(sessRepo, cfg.JWT.RefreshTokenTTL)
	dir := users.NewCachedResolver(a.users, a.redis, "userref:", cfg.Cache.UserRefTTL)

	opts := service.Options{
		Policy:           document.Policy{Strict: cfg.Workflow.StrictTransitions},
		TrackingAttempts: cfg.Workflow.TrackingAttempts,
	}
	if cfg.MinIO.Endpoint != "" {
		objects, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("minio unavailable, finished documents will not be archived: %v", err)
		} else {
			a.objects = objects
			opts.Archiver = storage.NewArchiver(objects)
		}
	}
	a.docs = service.New(docRepo, dir, opts)
	a.verifier = buildVerifier(ctx, cfg)
	return a, nil
}

// buildVerifier accepts local tokens first, then the OIDC provider when one
// is configured.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	var chain oidc.Chain
	if cfg.JWT.Secret != "" {
		chain = append(chain, tokens.NewVerifier(cfg))
	}
	kc := cfg.Keycloak
	if kc.URL != "" && kc.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, oidc.KeycloakIssuer(kc.URL, kc.Realm), kc.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if kc.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}
	return chain
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), gin.Logger(), gin.Recovery(), middleware.CORS(a.cfg.Server.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	limit := a.rateLimiter()
	protected := []gin.HandlerFunc{
		middleware.AuthMiddleware(a.verifier),
		middleware.CallerMiddleware(handlers.CallerResolver(a.users)),
	}

	api := r.Group("/api")
	handlers.NewAuthHandler(a.cfg, a.users, a.sessions).Register(api.Group("", limit), protected...)
	docs := api.Group("/documents", append(protected, limit)...)
	handler.RegisterDocumentRoutes(docs, a.docs)
	return r
}

// rateLimiter is keyed per caller on authenticated routes and per IP elsewhere.
func (a *app) rateLimiter() gin.HandlerFunc {
	rl := a.cfg.RateLimit
	switch {
	case !rl.Enabled:
		return func(c *gin.Context) { c.Next() }
	case rl.UseRedis && a.redis != nil:
		return middleware.RedisRateLimitMiddleware(a.redis, rl.RPS, rl.Burst, rl.Window)
	default:
		return middleware.RateLimitMiddleware(rl.RPS, rl.Burst)
	}
}

func (a *app) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	ready := true
	deps := gin.H{"store": a.store}

	if a.mongo != nil {
		if err := a.mongo.Ping(ctx, nil); err != nil {
			deps["mongo"] = false
			ready = false
		} else {
			deps["mongo"] = true
		}
	}
	if a.cfg.Redis.Addr() != "" {
		ok := a.redis != nil && a.redis.Ping(ctx).Err() == nil
		deps["redis"] = ok
		ready = ready && ok
	}
	if a.objects != nil {
		deps["archive"] = a.objects.Ping(ctx) == nil
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
}

func (a *app) close() {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongo.Disconnect(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
