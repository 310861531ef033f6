package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-drive/pkg/simpledrive/api"
	"github.com/tendant/simple-drive/pkg/simpledrive/config"
)

const developmentJWTSecret = "simple-drive-development-secret"

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML, JSON, TOML or .env configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		var cfg config.ServerConfig
		help, _ := cleanenv.GetDescription(&cfg, nil)
		fmt.Fprintln(flag.CommandLine.Output(), help)
	}
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	serverConfig, err := config.Load(config.WithConfigFile(*configFile), config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	if serverConfig.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, using the development secret", "environment", serverConfig.Environment)
		serverConfig.JWTSecret = developmentJWTSecret
	}

	if err := checkDatabase(context.Background(), serverConfig); err != nil {
		slog.Error("Database is not reachable", "err", err)
		os.Exit(1)
	}

	rt, err := serverConfig.Build(context.Background())
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	slog.Info("Simple Drive configured",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.StorageBackend,
	)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	server.R.Handle("/metrics", promhttp.Handler())

	if rt.BlobHandler != nil {
		prefix, err := blobMountPath(serverConfig.FS.URLPrefix)
		if err != nil {
			slog.Error("Invalid FS_URL_PREFIX", "err", err)
			os.Exit(1)
		}
		server.R.Mount(prefix, http.StripPrefix(prefix, rt.BlobHandler))
	}

	api.Register(server.R, api.NewItemHandler(rt.Service), api.NewAuth(serverConfig.JWTSecret))

	server.Run()
}

// blobMountPath returns the path component of the fs URL prefix, which may
// be an absolute URL or a bare path
func blobMountPath(urlPrefix string) (string, error) {
	u, err := url.Parse(urlPrefix)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		return "", fmt.Errorf("prefix %q has no path", urlPrefix)
	}
	return u.Path, nil
}

// checkDatabase pings Postgres before any migration runs; other repository
// types need no connectivity check
func checkDatabase(ctx context.Context, serverConfig *config.ServerConfig) error {
	if serverConfig.DatabaseType != "postgres" {
		return nil
	}
	return config.PingPostgres(ctx, serverConfig.DatabaseURL, serverConfig.DBSchema)
}
