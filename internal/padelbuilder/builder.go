package padelbuilder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/padel-scoreboard/internal/config"
	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/livefeed"
	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
	"github.com/park285/padel-scoreboard/internal/msgcat"
)

type Deps struct {
	Store    matchstore.Store
	Sink     export.Sink
	Feed     *livefeed.Hub
	Service  *matchsvc.Service
	Messages *msgcat.Catalog

	closers []func() error
}

// Close releases store and archive connections in reverse order of creation.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = msgs

	// Store
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := matchstore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rs := matchstore.NewRedisStore(rdb, cfg.MatchTTL)
		d.Store = rs
		d.closers = append(d.closers, rs.Close)
	case config.BackendSQLite:
		ss, err := matchstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		d.Store = ss
		d.closers = append(d.closers, ss.Close)
	case config.BackendMemory:
		d.Store = matchstore.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	logger.Info("match_store_ready", zap.String("backend", cfg.StoreBackend))

	// Export sinks: local file first so its path is the reported location
	sinks := export.Fanout{export.NewFileSink(cfg.ExportDir)}
	if cfg.S3.Enabled() {
		s3sink, err := export.NewS3Sink(ctx, export.S3Config{
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		sinks = append(sinks, s3sink)
		logger.Info("export_sink_s3", zap.String("bucket", cfg.S3.Bucket))
	}
	if cfg.DatabaseURL != "" {
		archive, err := export.NewArchiveSink(cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		sinks = append(sinks, archive)
		d.closers = append(d.closers, archive.Close)
		logger.Info("export_sink_archive")
	}
	if len(sinks) == 1 {
		d.Sink = sinks[0]
	} else {
		d.Sink = sinks
	}

	// Service and live feed reference each other: the feed loads snapshots
	// through the service, the service publishes into the feed.
	var hub *livefeed.Hub
	d.Service = matchsvc.New(d.Store, d.Sink,
		matchsvc.Config{SaveRetries: cfg.SaveRetries},
		matchsvc.WithLogger(logger),
		matchsvc.WithPublisher(feedRef{hub: &hub}),
	)
	hub = livefeed.NewHub(d.Service.Export, livefeed.WithAllowedOrigins(cfg.AllowedOrigins))
	d.Feed = hub
	return d, nil
}

type feedRef struct {
	hub **livefeed.Hub
}

func (f feedRef) Publish(snap *export.Snapshot) {
	if h := *f.hub; h != nil {
		h.Publish(snap)
	}
}
