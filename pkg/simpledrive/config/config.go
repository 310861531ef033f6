package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/exifmeta"
	"github.com/tendant/simple-drive/pkg/simpledrive/objectkey"
	"github.com/tendant/simple-drive/pkg/simpledrive/pathcache"
	repobadger "github.com/tendant/simple-drive/pkg/simpledrive/repo/badger"
	"github.com/tendant/simple-drive/pkg/simpledrive/repo/memory"
	repopg "github.com/tendant/simple-drive/pkg/simpledrive/repo/postgres"
	fsstorage "github.com/tendant/simple-drive/pkg/simpledrive/storage/fs"
	memorystorage "github.com/tendant/simple-drive/pkg/simpledrive/storage/memory"
	s3storage "github.com/tendant/simple-drive/pkg/simpledrive/storage/s3"
	"github.com/tendant/simple-drive/pkg/simpledrive/thumbnail"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
// Later options win.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Environment:     "development",
		DatabaseType:    "memory",
		DBSchema:        "drive",
		RunMigrations:   true,
		BadgerDir:       "./data/badger",
		StorageBackend:  "memory",
		ObjectKeyLayout: "flat",
		FS: FSConfig{
			BaseDir:   "./data/storage",
			URLPrefix: "/blobs",
		},
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
		SignedURLTTL:       15 * time.Minute,
		StorageTimeout:     30 * time.Second,
		PathCacheSize:      1024,
		PathCacheTTL:       5 * time.Minute,
		EnableEventLogging: true,
		EnableThumbnails:   true,
		EnableMetadata:     true,
	}
}

// ServerConfig represents server configuration for the simple-drive service.
// Fields carry no env-default tags; defaults() is the single source of defaults.
type ServerConfig struct {
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-description:"development, production or testing"`

	// Database configuration
	DatabaseType  string `yaml:"database_type" env:"DATABASE_TYPE" env-description:"memory, postgres or badger"`
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL" env-description:"Postgres connection string"`
	DBSchema      string `yaml:"db_schema" env:"DB_SCHEMA" env-description:"Postgres schema holding the items table"`
	RunMigrations bool   `yaml:"run_migrations" env:"RUN_MIGRATIONS" env-description:"apply embedded migrations on startup"`
	BadgerDir     string `yaml:"badger_dir" env:"BADGER_DIR" env-description:"Badger database directory"`

	// Storage configuration
	StorageBackend  string        `yaml:"storage_backend" env:"STORAGE_BACKEND" env-description:"memory, fs or s3"`
	ObjectKeyLayout string        `yaml:"object_key_layout" env:"OBJECT_KEY_LAYOUT" env-description:"flat or sharded"`
	FS              FSConfig      `yaml:"fs"`
	S3              S3Config      `yaml:"s3"`
	SignedURLTTL    time.Duration `yaml:"signed_url_ttl" env:"SIGNED_URL_TTL" env-description:"lifetime of download URLs"`
	StorageTimeout  time.Duration `yaml:"storage_timeout" env:"STORAGE_TIMEOUT" env-description:"timeout of each blob store call"`

	// API
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-description:"HS256 secret for bearer tokens"`

	// Service options
	PathCacheSize      int           `yaml:"path_cache_size" env:"PATH_CACHE_SIZE" env-description:"folders kept for path resolution, 0 disables"`
	PathCacheTTL       time.Duration `yaml:"path_cache_ttl" env:"PATH_CACHE_TTL"`
	EnableEventLogging bool          `yaml:"enable_event_logging" env:"ENABLE_EVENT_LOGGING"`
	EnableThumbnails   bool          `yaml:"enable_thumbnails" env:"ENABLE_THUMBNAILS"`
	EnableMetadata     bool          `yaml:"enable_metadata" env:"ENABLE_METADATA"`
}

// FSConfig configures the filesystem blob store
type FSConfig struct {
	BaseDir       string `yaml:"base_dir" env:"FS_BASE_DIR"`
	URLPrefix     string `yaml:"url_prefix" env:"FS_URL_PREFIX" env-description:"public prefix the blob handler is mounted under"`
	SigningSecret string `yaml:"signing_secret" env:"URL_SIGNING_SECRET"`
}

// S3Config configures the S3 blob store
type S3Config struct {
	Bucket                 string        `yaml:"bucket" env:"S3_BUCKET"`
	Region                 string        `yaml:"region" env:"S3_REGION"`
	Endpoint               string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID            string        `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey        string        `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle           bool          `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
	PresignDuration        time.Duration `yaml:"presign_duration" env:"S3_PRESIGN_DURATION"`
	EnableSSE              bool          `yaml:"enable_sse" env:"S3_ENABLE_SSE"`
	SSEAlgorithm           string        `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM"`
	SSEKMSKeyID            string        `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool          `yaml:"create_bucket_if_not_exist" env:"S3_CREATE_BUCKET"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "badger":
		if c.BadgerDir == "" {
			return errors.New("badger_dir is required when using badger")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'badger'")
	}

	switch c.StorageBackend {
	case "memory":
	case "fs":
		if c.FS.BaseDir == "" {
			return errors.New("fs base_dir is required when using fs storage")
		}
		if c.FS.SigningSecret == "" {
			return errors.New("url_signing_secret is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_backend must be 'memory', 'fs' or 's3'")
	}

	if _, err := objectkey.New(c.ObjectKeyLayout); err != nil {
		return err
	}
	if c.PathCacheSize < 0 {
		return errors.New("path_cache_size cannot be negative")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}
	return nil
}

// Runtime holds the service built from a ServerConfig and the resources
// backing it
type Runtime struct {
	Service simpledrive.Service
	// BlobHandler serves signed fs downloads; nil for other backends
	BlobHandler http.Handler

	closers []func()
}

// Close releases database handles in reverse order of creation
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Build creates the Service and its backing resources from the configuration
func (c *ServerConfig) Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{}
	var options []simpledrive.Option

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, simpledrive.WithRepository(repo))

	store, err := c.buildStorageBackend(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageBackend, err)
	}
	options = append(options, simpledrive.WithBlobStore(c.StorageBackend, store))

	keys, err := objectkey.New(c.ObjectKeyLayout)
	if err != nil {
		rt.Close()
		return nil, err
	}
	options = append(options,
		simpledrive.WithObjectKeyGenerator(keys),
		simpledrive.WithStorageTimeout(c.StorageTimeout),
	)

	if c.EnableThumbnails {
		options = append(options, simpledrive.WithThumbnailer(thumbnail.New()))
	}
	if c.EnableMetadata {
		options = append(options, simpledrive.WithMetadataExtractor(exifmeta.New()))
	}
	if c.PathCacheSize > 0 {
		options = append(options, simpledrive.WithFolderCache(pathcache.New(c.PathCacheSize, c.PathCacheTTL)))
	}
	if c.EnableEventLogging {
		options = append(options, simpledrive.WithEventSink(simpledrive.NewLoggingEventSink(slog.Default())))
	}

	svc, err := simpledrive.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simpledrive.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "badger":
		repo, err := repobadger.Open(repobadger.Config{Dir: c.BadgerDir})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := repo.Close(); err != nil {
				slog.Error("Failed to close badger", "error", err)
			}
		})
		return repo, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if c.RunMigrations {
			if err := repopg.EnsureSchema(ctx, pool, c.DBSchema); err != nil {
				return nil, err
			}
			if err := repopg.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// newPool opens a pgx pool whose sessions use schema as search_path
func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context, rt *Runtime) (simpledrive.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(memorystorage.WithURLTTL(c.SignedURLTTL)), nil
	case "fs":
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:       c.FS.BaseDir,
			URLPrefix:     c.FS.URLPrefix,
			SigningSecret: c.FS.SigningSecret,
			URLTTL:        c.SignedURLTTL,
		})
		if err != nil {
			return nil, err
		}
		rt.BlobHandler = backend.Handler()
		return backend, nil
	case "s3":
		presign := c.S3.PresignDuration
		if presign <= 0 {
			presign = c.SignedURLTTL
		}
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        presign,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageBackend)
	}
}
