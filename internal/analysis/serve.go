package analysis

import (
	"context"
	"time"

	"github.com/f1predict/f1predict/internal/api"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/prediction"
)

// Serve runs the HTTP service until ctx is canceled or the listener fails,
// then shuts down gracefully.
func Serve(ctx context.Context, settings *conf.Settings, build buildinfo.BuildInfo) error {
	pipeline, err := NewPipeline(ctx, settings, build)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			GetLogger().Warn("error releasing pipeline resources", logger.Error(err))
		}
	}()

	server, err := api.New(settings,
		api.WithBuildInfo(build),
		api.WithCatalog(pipeline.Catalog),
		api.WithPredictor(pipeline.Service),
		api.WithMetrics(pipeline.Metrics),
	)
	if err != nil {
		return err
	}
	return run(ctx, server, settings.WebServer.ShutdownTimeout)
}

// server is the part of api.Server that run drives.
type server interface {
	Start()
	Err() <-chan error
	Shutdown(ctx context.Context) error
}

func run(ctx context.Context, srv server, shutdownTimeout time.Duration) error {
	srv.Start()

	var serveErr error
	select {
	case <-ctx.Done():
		GetLogger().Info("shutdown signal received")
	case serveErr = <-srv.Err():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = api.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

// PredictOnce runs a single prediction and waits for its publication.
func PredictOnce(ctx context.Context, settings *conf.Settings, build buildinfo.BuildInfo, track string) (*prediction.Prediction, error) {
	pipeline, err := NewPipeline(ctx, settings, build)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pipeline.Close() }()

	return pipeline.Service.Predict(ctx, track)
}
