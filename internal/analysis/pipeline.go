// Package analysis wires the prediction pipeline from settings and runs it,
// either as the HTTP service or as a one-shot prediction.
package analysis

import (
	"context"

	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/model"
	"github.com/f1predict/f1predict/internal/observability"
	"github.com/f1predict/f1predict/internal/prediction"
	"github.com/f1predict/f1predict/internal/publish"
	"github.com/f1predict/f1predict/internal/qualifying"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/weather"
)

// GetLogger returns the analysis package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Pipeline holds every long-lived component a prediction needs.
type Pipeline struct {
	Settings  *conf.Settings
	Catalog   *season.Catalog
	Metrics   *observability.Metrics
	Bundle    *model.Bundle
	History   history.Store
	Publisher publish.Publisher
	Service   *prediction.Service

	client *httpclient.Client
	log    logger.Logger
}

// NewPipeline builds the pipeline. Model artifacts are mandatory; a missing
// history store or unreachable MQTT broker only degrades the pipeline.
func NewPipeline(ctx context.Context, settings *conf.Settings, build buildinfo.BuildInfo) (*Pipeline, error) {
	log := GetLogger()
	p := &Pipeline{Settings: settings, log: log}

	p.Catalog = season.Default()
	if settings.Prediction.Season != 0 && settings.Prediction.Season != p.Catalog.Season() {
		return nil, errors.Newf("no catalog for season %d, embedded catalog covers %d",
			settings.Prediction.Season, p.Catalog.Season()).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).Component("analysis").Category(errors.CategoryGeneric).Build()
	}
	p.Metrics = metrics

	bundle, err := model.LoadBundle(model.Paths{
		Driver:      settings.Model.DriverPath,
		Constructor: settings.Model.ConstructorPath,
		Encoding:    settings.Model.EncodingPath,
	})
	if err != nil {
		return nil, err
	}
	if bundle.Driver.Version == "" && bundle.Encoding.Version == "" {
		bundle.Driver.Version = settings.Model.Version
	}
	p.Bundle = bundle

	p.client = httpclient.New(&httpclient.Config{UserAgent: "f1predict/" + build.GetVersion()})
	instrumentClient(p.client, log.Module("outbound"))

	store, err := history.Open(ctx, &settings.History, p.Catalog)
	if err != nil {
		log.Warn("race history unavailable, using baseline form",
			logger.String("backend", settings.History.Backend),
			logger.Error(err))
		store = history.Nop{}
	}
	p.History = store

	pub, err := publish.NewFromSettings(ctx, settings)
	if err != nil {
		log.Warn("MQTT publication disabled", logger.String("broker", settings.MQTT.Broker), logger.Error(err))
		pub = publish.Nop{}
	}
	p.Publisher = pub

	svc, err := prediction.New(prediction.Config{
		Catalog:        p.Catalog,
		Bundle:         bundle,
		Weather:        weather.NewFromSettings(settings, p.client, metrics.Weather),
		Qualifying:     qualifying.NewFromSettings(settings, p.client, p.Catalog, metrics.Qualifying),
		History:        store,
		Publisher:      pub,
		Metrics:        metrics.Prediction,
		Season:         settings.Prediction.Season,
		FormWindow:     settings.Prediction.RecentRaces,
		PartialResults: settings.Prediction.PartialResults,
	})
	if err != nil {
		p.closeResources()
		return nil, err
	}
	p.Service = svc

	log.Info("prediction pipeline ready",
		logger.String("model_version", bundle.Version()),
		logger.Int("season", p.Catalog.Season()),
		logger.Bool("live_weather", settings.WeatherEnabled()),
		logger.String("history_backend", settings.History.Backend),
		logger.Bool("mqtt", settings.MQTT.Enabled),
		logger.Bool("partial_results", settings.Prediction.PartialResults))

	return p, nil
}

// Close waits for in-flight publications and releases every resource.
func (p *Pipeline) Close() error {
	if p.Service != nil {
		p.Service.Close()
	}
	return p.closeResources()
}

func (p *Pipeline) closeResources() error {
	var errs []error
	if p.Publisher != nil {
		if err := p.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.History != nil {
		if err := p.History.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.client != nil {
		p.client.Close()
	}
	return errors.Join(errs...)
}
