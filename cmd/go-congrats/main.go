package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
	"github.com/tartampluch/go-congrats/internal/generator"
	"github.com/tartampluch/go-congrats/internal/history"
	"github.com/tartampluch/go-congrats/internal/roster"
	"github.com/tartampluch/go-congrats/internal/sender"
	"github.com/tartampluch/go-congrats/internal/server"
)

// main delegates to runMain so deferred calls run before os.Exit.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	configPath := flag.String(config.FlagConfig, config.DefaultConfigFile, config.FlagDescConfig)
	importSource := flag.String(config.FlagImport, "", config.FlagDescImport)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Settings & Logging
	// -------------------------------------------------------------------------
	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrConfigRead, *configPath, err)
		return config.ExitCodeError
	}
	settings.Debug = settings.Debug || *debugMode
	settings.ResolveSecrets(config.NewKeyringStore())

	logCloser := setupLogging(settings.Debug)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, settings, *importSource); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run wires dependencies and serves the API until ctx is cancelled.
func run(ctx context.Context, settings *config.Settings, importSource string) error {
	st, err := openStorage(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.close()

	cache, closeCache := openCache(ctx, settings)
	defer closeCache()

	catalog, err := generator.NewCatalog(settings.Generator.Locale)
	if err != nil {
		return err
	}

	clock := engine.RealClock{}
	gen := generator.New(generator.Config{
		Clients:     st.clients,
		Catalog:     catalog,
		Cache:       cache,
		Renderer:    generator.NewRenderer(catalog, settings.Generator, nil),
		Clock:       clock,
		DefaultTone: settings.Generator.DefaultTone,
	})

	mailer, err := sender.New(sender.Config{
		Catalog:  catalog,
		Settings: settings.Email,
		Debug:    settings.Debug,
		Real:     openTransport(ctx, settings.Email),
		Clock:    clock,
	})
	if err != nil {
		return err
	}

	importer := roster.NewImporter(st.clients)
	if importSource != "" {
		src := roster.Source{Location: importSource, User: settings.Roster.User, Pass: settings.Roster.Password}
		if _, err := importer.Import(ctx, src); err != nil {
			return err
		}
	}

	srv := server.New(server.Deps{
		Settings:  settings,
		Clients:   st.clients,
		History:   st.history,
		Detector:  engine.NewDetector(clock, settings.Generator.DaysAhead),
		Generator: gen,
		Sender:    mailer,
		Importer:  importer,
		Clock:     clock,
		Ping:      st.ping,
	})
	return srv.Start(ctx)
}

// storage bundles the repositories sharing one backend.
type storage struct {
	clients client.Repository
	history history.Store
	ping    func(ctx context.Context) error
	close   func()
}

// openStorage connects to PostgreSQL, or falls back to memory when no URL is set.
func openStorage(ctx context.Context, dsn string) (*storage, error) {
	if dsn == "" {
		slog.Warn(config.MsgStorageMemory, config.LogKeyComponent, config.CompMain)
		return &storage{
			clients: client.NewMemoryRepository(),
			history: history.NewMemoryStore(),
			close:   func() {},
		}, nil
	}

	db, err := sql.Open(config.DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDatabaseOpen, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrDatabasePing, err)
	}

	clients := client.NewPostgresRepository(db)
	congrats := history.NewPostgresStore(db)
	if err := errors.Join(clients.EnsureSchema(ctx), congrats.EnsureSchema(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info(config.MsgStoragePostgres, config.LogKeyComponent, config.CompMain)
	return &storage{
		clients: clients,
		history: congrats,
		ping:    db.PingContext,
		close:   func() { _ = db.Close() },
	}, nil
}

// openCache prefers Redis and degrades to the in-process cache when it is unreachable.
func openCache(ctx context.Context, settings *config.Settings) (generator.Cache, func()) {
	if settings.RedisURL == "" {
		return generator.NewMemoryCache(), func() {}
	}
	rc, err := generator.NewRedisCacheFromURL(settings.RedisURL, settings.Generator.CachePrefix)
	if err == nil {
		err = rc.Ping(ctx)
	}
	if err != nil {
		slog.Warn(config.MsgCacheFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		if rc != nil {
			_ = rc.Close()
		}
		return generator.NewMemoryCache(), func() {}
	}

	slog.Info(config.MsgCacheRedis, config.LogKeyComponent, config.CompMain)
	return rc, func() { _ = rc.Close() }
}

// openTransport returns the SES transport, or nil to simulate every email.
func openTransport(ctx context.Context, settings config.EmailSettings) sender.Transport {
	ses, err := sender.NewSESTransport(ctx, settings)
	if errors.Is(err, sender.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		slog.Warn(config.MsgSMTPNotConfig,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return nil
	}
	slog.Info(config.MsgEmailSES, config.LogKeyComponent, config.CompMain)
	return ses
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		config.Date,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger.
func setupLogging(debugMode bool) io.Closer {
	var writers []io.Writer
	var logFile *os.File

	writers = append(writers, os.Stdout)

	// O_TRUNC resets logs on restart to prevent indefinite growth.
	if logPath, err := getLogFilePath(); err == nil {
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
