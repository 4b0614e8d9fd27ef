package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/alefiaschi96/networth-gateway/handlers"
	"github.com/alefiaschi96/networth-gateway/internal/config"
	"github.com/alefiaschi96/networth-gateway/internal/database"
	"github.com/alefiaschi96/networth-gateway/internal/oidc"
	"github.com/alefiaschi96/networth-gateway/internal/tokenstore"
	"github.com/alefiaschi96/networth-gateway/pkg/logger"
	"github.com/alefiaschi96/networth-gateway/pkg/metrics"
	"github.com/alefiaschi96/networth-gateway/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: backend=%s redis=%v mongo=%v oidc=%v",
		cfg.Backend.BaseURL, cfg.Redis.Host != "", cfg.MongoDB.URI != "", cfg.OIDC.Issuer != "")

	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Connect to Redis early so both the token store and the rate limiter can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win, cfg.Cookies.DeviceName))
		} else {
			r.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.Cookies.DeviceName).Middleware())
		}
	}

	// Optional strict guard mode: verify access cookies against the OIDC issuer
	var verifier middleware.Verifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && os.Getenv("ALLOW_INSECURE_TOKEN") == "true" {
		logger.Warn("enabling insecure token verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	r.Use(middleware.RouteGuard(middleware.GuardOptions{
		LoginPath:         cfg.Guard.LoginPath,
		AccessCookie:      cfg.Cookies.AccessName,
		PublicPaths:       cfg.Guard.PublicPaths,
		StaticPrefixes:    cfg.Guard.StaticPrefixes,
		ProtectedPrefixes: cfg.Guard.ProtectedPrefixes,
		Verifier:          verifier,
	}))

	// Pick the server-side store tier: Redis when available, then Mongo,
	// then process-local memory.
	var repo tokenstore.Repository
	if redisClient != nil {
		repo = tokenstore.NewRedisRepository(redisClient, "device:")
		logger.Infof("Using Redis for the token store")
	} else if cfg.MongoDB.URI != "" {
		// retry with backoff to tolerate startup races against the database
		const maxAttempts = 5
		backoff := time.Second
		var client *mongo.Client
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			col := client.Database(cfg.MongoDB.Database).Collection("devices")
			repo = tokenstore.NewMongoRepository(col)
			logger.Infof("Using MongoDB for the token store")
		}
	}
	if repo == nil {
		repo = tokenstore.NewMemoryRepository()
		logger.Warnf("no Redis or MongoDB configured, token store falls back to process memory")
	}

	httpc := &http.Client{Timeout: cfg.Backend.Timeout}
	handlers.NewAuthHandler(cfg, repo, httpc).Register(r.Group(""))
	handlers.NewProxyHandler(cfg, repo, httpc).Register(r.Group("/api"))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the critical dependencies answered
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["storage"] = repo != nil
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		}
		if cfg.OIDC.Issuer != "" {
			deps["oidc"] = verifier != nil
			if !deps["oidc"] {
				ready = false
			}
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting NetWorth gateway on %s (env=%s)", addr, cfg.Server.Environment)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
