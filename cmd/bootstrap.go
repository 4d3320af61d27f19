package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/audit"
	"github.com/attendly/facegate/internal/config"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/embed"
	"github.com/attendly/facegate/internal/gallery"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/inference"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/pipeline"
	"github.com/attendly/facegate/internal/store"
	"github.com/attendly/facegate/internal/store/mariadb"
	"github.com/attendly/facegate/internal/store/mock"
	"github.com/attendly/facegate/internal/store/postgres"
)

// backends bundles the persistence layer behind whichever database the
// deployment configured.
type backends struct {
	identities store.IdentityStore
	devices    store.DeviceStore
	history    store.HistoryStore
	audits     store.AuditStore
	close      func()
}

// openStores connects to PostgreSQL when DATABASE_URL is set, MariaDB when
// MARIADB_DSN is set, and falls back to in-memory stores for local runs.
func openStores(ctx context.Context, cfg *config.Config) (*backends, error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(postgres.Config{
			URL:          cfg.Database.URL,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		return &backends{
			identities: postgres.NewIdentityRepo(pool),
			devices:    postgres.NewDeviceRepo(pool),
			history:    postgres.NewHistoryRepo(pool),
			audits:     postgres.NewAuditRepo(pool),
			close:      func() { pool.Close() },
		}, nil

	case cfg.Database.MariaDSN != "":
		pool, err := mariadb.NewPool(cfg.Database.MariaDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		if err := mariadb.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating MariaDB schema: %w", err)
		}
		return &backends{
			identities: mariadb.NewIdentityRepo(pool),
			devices:    mariadb.NewDeviceRepo(pool),
			history:    mariadb.NewHistoryRepo(pool),
			audits:     mariadb.NewAuditRepo(pool),
			close:      func() { pool.Close() },
		}, nil

	default:
		fmt.Println("No database configured, using in-memory stores (data is lost on exit)")
		return &backends{
			identities: mock.NewMockIdentityStore(),
			devices:    mock.NewMockDeviceStore(),
			history:    mock.NewMockHistoryStore(),
			audits:     mock.NewMockAuditStore(),
			close:      func() {},
		}, nil
	}
}

// newDispatcher picks the Redis-backed audit queue when an address is
// configured, the in-process fallback otherwise.
func newDispatcher(cfg *config.Config, b *backends, log *zap.Logger) audit.Dispatcher {
	if cfg.Redis.Addr != "" {
		return audit.NewQueueDispatcher(cfg.Redis.Addr, cfg.Redis.Password, log)
	}
	return audit.NewInProcessDispatcher(b.audits, b.devices, log)
}

// buildPipeline loads the ONNX models and assembles the verification
// pipeline. The returned loader must be closed after the pipeline is done.
func buildPipeline(ctx context.Context, cfg *config.Config, b *backends, dispatcher audit.Dispatcher, log *zap.Logger) (*pipeline.Pipeline, *inference.Loader, error) {
	loader := inference.NewLoader(cfg.Models.Dir, cfg.Models.LibraryPath, log)

	detSession, err := loader.Detector()
	if err != nil {
		loader.Close()
		return nil, nil, fmt.Errorf("loading detection model: %w", err)
	}
	embSession, err := loader.Embedder()
	if err != nil {
		loader.Close()
		return nil, nil, fmt.Errorf("loading recognition model: %w", err)
	}

	p := pipeline.New(pipeline.Deps{
		Gate:       imaging.NewGate(cfg.GateConfig(), log),
		Detector:   detect.New(detSession, cfg.DetectConfig(), log),
		Embedder:   embed.New(embSession, log),
		Matcher:    match.NewWithConfig(b.history, cfg.MatchConfig(), log),
		Identities: b.identities,
		Devices:    b.devices,
		History:    b.history,
		Audits:     dispatcher,
		Index:      gallery.NewIndex(),
		Log:        log,
	})

	if err := p.RebuildIndex(ctx); err != nil {
		loader.Close()
		return nil, nil, fmt.Errorf("building gallery index: %w", err)
	}
	return p, loader, nil
}
