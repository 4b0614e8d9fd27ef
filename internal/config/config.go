package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Cookies   CookieConfig
	Redis     RedisConfig
	MongoDB   MongoDBConfig
	Guard     GuardConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BackendConfig describes the remote NetWorth REST API. Every path is
// configuration, not code: observed deployments disagree on the profile
// path (/api/auth/me vs /api/users/me) and on the production host.
type BackendConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Endpoints Endpoints
}

// Endpoints are the backend paths the gateway calls by name. Everything
// else (accounts, assets, transactions, ...) is proxied opaquely.
type Endpoints struct {
	Login    string
	Register string
	Logout   string
	Refresh  string
	Profile  string
}

type CookieConfig struct {
	AccessName  string
	RefreshName string
	DeviceName  string
	Secure      bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// GuardConfig drives the edge route guard. Only the protected prefixes
// are gated; static and public paths bypass the guard unconditionally.
type GuardConfig struct {
	LoginPath         string
	PublicPaths       []string
	StaticPrefixes    []string
	ProtectedPrefixes []string
}

// OIDCConfig enables the optional strict guard mode: when Issuer is set
// the guard verifies the access token cookie instead of checking presence.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// productionFallbackURL is the last-resort backend host used when
// NETWORTH_API_URL is unset outside development. Deployments should
// always set the variable explicitly.
const productionFallbackURL = "http://networth-api-alb-1856144295.eu-south-1.elb.amazonaws.com"

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("BACKEND_TIMEOUT", 30)
	viper.SetDefault("NETWORTH_LOGIN_PATH", "/api/auth/login")
	viper.SetDefault("NETWORTH_REGISTER_PATH", "/api/auth/register")
	viper.SetDefault("NETWORTH_LOGOUT_PATH", "/api/auth/logout")
	viper.SetDefault("NETWORTH_REFRESH_PATH", "/api/auth/refresh-token")
	viper.SetDefault("NETWORTH_PROFILE_PATH", "/api/auth/me")
	viper.SetDefault("COOKIE_ACCESS_NAME", "accessToken")
	viper.SetDefault("COOKIE_REFRESH_NAME", "refreshToken")
	viper.SetDefault("COOKIE_DEVICE_NAME", "deviceId")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	env := viper.GetString("SERVER_ENVIRONMENT")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  env,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL: resolveBaseURL(env),
			Timeout: time.Duration(viper.GetInt("BACKEND_TIMEOUT")) * time.Second,
			Endpoints: Endpoints{
				Login:    viper.GetString("NETWORTH_LOGIN_PATH"),
				Register: viper.GetString("NETWORTH_REGISTER_PATH"),
				Logout:   viper.GetString("NETWORTH_LOGOUT_PATH"),
				Refresh:  viper.GetString("NETWORTH_REFRESH_PATH"),
				Profile:  viper.GetString("NETWORTH_PROFILE_PATH"),
			},
		},
		Cookies: CookieConfig{
			AccessName:  viper.GetString("COOKIE_ACCESS_NAME"),
			RefreshName: viper.GetString("COOKIE_REFRESH_NAME"),
			DeviceName:  viper.GetString("COOKIE_DEVICE_NAME"),
			Secure:      env != "development",
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Guard: GuardConfig{
			LoginPath: "/auth/login",
			PublicPaths: []string{
				"/auth/login",
				"/auth/register",
				"/auth/forgot-password",
				"/auth/reset-password",
				"/",
			},
			StaticPrefixes: []string{
				"/static",
				"/favicon.ico",
				"/images",
				"/api",
			},
			ProtectedPrefixes: []string{
				"/dashboard",
				"/profile",
				"/settings",
				"/accounts",
				"/transactions",
			},
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("OIDC_ISSUER"),
			ClientID: viper.GetString("OIDC_CLIENT_ID"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}

// resolveBaseURL picks the backend host: explicit env var first, then a
// localhost default for development, then the production fallback.
func resolveBaseURL(env string) string {
	if v := strings.TrimSpace(viper.GetString("NETWORTH_API_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if env == "development" {
		return "http://localhost:3000"
	}
	return productionFallbackURL
}
