package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kb-console/backend/internal/api"
	"github.com/kb-console/backend/internal/config"
	"github.com/kb-console/backend/internal/kbclient"
	"github.com/kb-console/backend/internal/logging"
	"github.com/kb-console/backend/internal/session"
	"github.com/kb-console/backend/internal/storage"
	"github.com/kb-console/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "KnowledgeBaseConsole.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	metadata, err := config.LoadDocumentMetadata(cfg.Upload.MetadataFile)
	if err != nil {
		fmt.Printf("Failed to load document metadata: %v\n", err)
		os.Exit(1)
	}

	// Initialize staging storage
	fileStore, err := storage.NewLocalStore(cfg.GetStagingDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Batches and the cleanup loop stop when the process is asked to exit
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kb := kbclient.New(cfg.KnowledgeBase.APIBaseURL)

	sessionMgr := session.NewManager(fileStore, kb, upload.Options{
		Timeout:    cfg.UploadTimeout(),
		ResetDelay: cfg.ResetDelay(),
		Metadata:   metadata,
		Logger:     logging.New("upload", cfg.Advanced.LogLevel),
	}, cfg.Upload.MaxSessions, logging.New("session", cfg.Advanced.LogLevel))

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logging.ParseLevel(cfg.Advanced.LogLevel))

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		ShowErrorInfo:  cfg.Advanced.LogLevel == "debug",
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Context:          ctx,
		Store:            fileStore,
		Sessions:         sessionMgr,
		KnowledgeBase:    kb,
		Version:          Version,
		HealthTimeout:    cfg.HealthTimeout(),
		QueryTopK:        cfg.KnowledgeBase.QueryTopK,
		QueryThreshold:   cfg.KnowledgeBase.QueryScoreThreshold,
		SniffContentType: cfg.Upload.SniffContentType,
		Logger:           logging.New("api", cfg.Advanced.LogLevel),
	})
	api.RegisterRoutes(e, handlers)

	// Configure server with settings from XML config. No write timeout:
	// ?wait=true upload requests last as long as the batch.
	s := &http.Server{
		Addr:        cfg.GetServerAddr(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Knowledge Base Console Server                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  KB API:    %-46s║\n", kb.BaseURL())
	fmt.Printf("║  Staging:   %-46s║\n", cfg.GetStagingDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error(err)
	}

	// ctx is already cancelled, so running batches resolve with "Upload cancelled"
	sessionMgr.Wait()
	sessionMgr.Close()
}
