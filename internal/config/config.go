package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr    string
	StorageDir  string
	MaxFileSize int64
	Thumbnail   ThumbnailConfig
	Database    DatabaseConfig
	// OwnerTables maps an owner type tag onto the table holding those entities.
	OwnerTables map[string]string
	Log         LogConfig
	Auth        AuthConfig
}

type ThumbnailConfig struct {
	Height int
	Prefix string
	// MaxPixels caps width*height of images accepted for decoding.
	MaxPixels int
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	Enabled      bool
	JWKSUrl      string
	Issuer       string
	Audience     string
	JWKSCacheTTL int // Cache TTL in seconds
}

func Load() (*Config, error) {
	maxFileSize, err := strconv.ParseInt(getEnv("MEDIA_MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MEDIA_MAX_FILE_SIZE: %w", err)
	}

	thumbHeight, err := strconv.Atoi(getEnv("MEDIA_THUMBNAIL_HEIGHT", "200"))
	if err != nil || thumbHeight <= 0 {
		return nil, fmt.Errorf("invalid MEDIA_THUMBNAIL_HEIGHT: must be a positive integer")
	}

	maxPixels, err := strconv.Atoi(getEnv("MEDIA_MAX_IMAGE_PIXELS", "64000000"))
	if err != nil || maxPixels <= 0 {
		return nil, fmt.Errorf("invalid MEDIA_MAX_IMAGE_PIXELS: must be a positive integer")
	}

	autoMigrate, err := strconv.ParseBool(getEnv("MEDIA_DB_AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEDIA_DB_AUTO_MIGRATE: %w", err)
	}

	ownerTables, err := parseOwnerTables(getEnv("MEDIA_OWNER_TYPES", "product:products,category:categories,brand:brands"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEDIA_OWNER_TYPES: %w", err)
	}

	authEnabled, err := strconv.ParseBool(getEnv("AUTH_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_ENABLED: %w", err)
	}

	jwksCacheTTL := 900 // 15 minutes default
	if ttlStr := getEnv("AUTH_JWKS_CACHE_TTL", ""); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_JWKS_CACHE_TTL: %w", err)
		}
		jwksCacheTTL = ttl
	}

	return &Config{
		HTTPAddr:    getEnv("MEDIA_HTTP_ADDR", ":8080"),
		StorageDir:  getEnv("MEDIA_STORAGE_DIR", "/var/media"),
		MaxFileSize: maxFileSize,
		Thumbnail: ThumbnailConfig{
			Height:    thumbHeight,
			Prefix:    getEnv("MEDIA_THUMBNAIL_PREFIX", "thumbnail_"),
			MaxPixels: maxPixels,
		},
		Database: DatabaseConfig{
			Driver:      getEnv("MEDIA_DB_DRIVER", "postgres"),
			DSN:         getEnv("MEDIA_DB_DSN", "host=localhost user=media password=media dbname=media port=5432 sslmode=disable"),
			AutoMigrate: autoMigrate,
		},
		OwnerTables: ownerTables,
		Log: LogConfig{
			Level:  getEnv("MEDIA_LOG_LEVEL", "info"),
			Format: getEnv("MEDIA_LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			Enabled:      authEnabled,
			JWKSUrl:      getEnv("AUTH_JWKS_URL", "http://user-service:3000/.well-known/jwks.json"),
			Issuer:       getEnv("AUTH_ISSUER", "http://user-service:3000"),
			Audience:     getEnv("AUTH_AUDIENCE", "backboard"),
			JWKSCacheTTL: jwksCacheTTL,
		},
	}, nil
}

// parseOwnerTables reads "type:table" pairs separated by commas. A bare type
// uses itself as the table name.
func parseOwnerTables(raw string) (map[string]string, error) {
	tables := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ownerType, table, found := strings.Cut(entry, ":")
		ownerType, table = strings.TrimSpace(ownerType), strings.TrimSpace(table)
		if !found {
			table = ownerType
		}
		if ownerType == "" || table == "" {
			return nil, fmt.Errorf("malformed entry %q", entry)
		}
		tables[ownerType] = table
	}
	return tables, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
