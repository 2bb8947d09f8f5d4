//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/meteo-forecast/internal/bootstrap"
	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
	"github.com/yanqian/meteo-forecast/internal/infra/config"
	"github.com/yanqian/meteo-forecast/internal/infra/meteo/openmeteo"
	httpiface "github.com/yanqian/meteo-forecast/internal/interface/http"
	"github.com/yanqian/meteo-forecast/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideForecastConfig,
		provideRegions,
		provideOpenMeteoClient,
		provideForecastStore,
		provideRunLog,
		provideArchive,
		forecast.NewService,
		wire.Bind(new(forecast.CurrentSupplier), new(*openmeteo.Client)),
		wire.Bind(new(forecast.HistoricalSupplier), new(*openmeteo.Client)),
		provideWarmer,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
