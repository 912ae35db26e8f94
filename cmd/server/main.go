// Command server runs the PII masking service.
//
// It exposes the public masking API (/predict, /mask, /demask) and a
// loopback-only management API. Pattern rules always run; a named-entity
// recognizer sidecar, a category classifier and a result vault are wired in
// when their settings are present.
//
// Usage:
//
//	# Pattern rules only
//	./server
//
//	# With a recognizer sidecar and a classifier
//	NER_ENDPOINT=http://localhost:8001 CLASSIFIER_ENDPOINT=http://localhost:9000 ./server
//
//	# Keep mask results for demask-by-id, purged after a day
//	VAULT_PATH=vault.db VAULT_RETENTION_HOURS=24 ./server
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pii-masking-service/internal/api"
	"pii-masking-service/internal/category"
	"pii-masking-service/internal/config"
	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/management"
	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/metrics"
	"pii-masking-service/internal/ner"
	"pii-masking-service/internal/vault"
)

func main() {
	cfg := config.Load()
	log := logger.New("SERVER", cfg.LogLevel)

	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Fatalf("run", "%v", err)
	}
}

// service holds everything run starts and later tears down.
type service struct {
	api     *api.Server
	mgmt    *management.Server
	vault   *vault.Vault // nil = disabled
	closers []io.Closer
}

// build wires the engine and its collaborators from cfg.
func build(cfg *config.Config, log *logger.Logger) (*service, error) {
	m := metrics.New()
	svc := &service{}

	opts := []masker.Option{masker.WithLogger(log.Named("MASKER"))}
	if cfg.NEREndpoint != "" {
		store, err := ner.OpenStore(cfg.NERCachePath, cfg.NERCacheCapacity, log.Named("NERCACHE"))
		if err != nil {
			return nil, err
		}
		client := ner.New(cfg.NEREndpoint, cfg.NERTimeout(), log.Named("NER"))
		rec := ner.NewCachingRecognizer(client, store, m, log.Named("NER"))
		svc.closers = append(svc.closers, rec)
		opts = append(opts, masker.WithRecognizer(rec))
		if cfg.AllowPatternOnly {
			opts = append(opts, masker.WithPatternOnlyFallback())
		}
	}
	engine := masker.New(opts...)

	var cat *category.Categorizer
	if cfg.ClassifierEndpoint != "" {
		labels, err := category.LoadLabels(cfg.CategoryMapFile)
		if err != nil {
			svc.close(log)
			return nil, err
		}
		clf := category.NewHTTPClassifier(cfg.ClassifierEndpoint, cfg.ClassifierTimeout(), log.Named("CATEGORY"))
		cat = category.NewCategorizer(clf, labels)
	}

	// Interfaces stay nil when the vault is off.
	var (
		store  api.Store
		purger management.Purger
	)
	if cfg.VaultPath != "" {
		v, err := vault.Open(cfg.VaultPath, log.Named("VAULT"))
		if err != nil {
			svc.close(log)
			return nil, err
		}
		svc.vault = v
		svc.closers = append(svc.closers, v)
		store, purger = v, v
	}

	svc.api = api.New(cfg, engine, cat, store, m, log.Named("API"))
	svc.mgmt = management.New(cfg, m, purger, log.Named("MANAGEMENT"))
	return svc, nil
}

func (s *service) close(log *logger.Logger) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Warnf("close", "%v", err)
		}
	}
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	svc, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(svc.api.ListenAndServe)
	g.Go(svc.mgmt.ListenAndServe)
	if svc.vault != nil && cfg.VaultRetention() > 0 {
		g.Go(func() error {
			svc.vault.RunPurger(gctx, cfg.VaultRetention(), time.Hour)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(svc.api.Shutdown(shutdownCtx), svc.mgmt.Shutdown(shutdownCtx))
	})

	err = g.Wait()
	log.Info("run", "stopped")
	return err
}

func printBanner(cfg *config.Config) {
	recognizer := cfg.NEREndpoint
	if recognizer == "" {
		recognizer = "(none, pattern rules only; set NER_ENDPOINT)"
	} else if cfg.AllowPatternOnly {
		recognizer += " (falls back to pattern rules)"
	}
	classifier := cfg.ClassifierEndpoint
	if classifier == "" {
		classifier = "(none, every email is \"unknown\")"
	}
	vaultPath := cfg.VaultPath
	if vaultPath == "" {
		vaultPath = "(disabled)"
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          PII Masking Service  (Go)                   ║
╚══════════════════════════════════════════════════════╝
  API             : %s:%d
  Management port : %d
  Recognizer      : %s
  Classifier      : %s
  Vault           : %s

  Try it:
    curl -s localhost:%d/mask -d '{"text":"mail me at jane@example.com"}'

  Check status:
    curl http://localhost:%d/status
`, cfg.BindAddress, cfg.APIPort, cfg.ManagementPort,
		recognizer, classifier, vaultPath,
		cfg.APIPort, cfg.ManagementPort)
}
