//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/fevertrack/internal/bootstrap"
	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
	"github.com/yanqian/fevertrack/internal/infra/config"
	httpiface "github.com/yanqian/fevertrack/internal/interface/http"
	"github.com/yanqian/fevertrack/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAuthConfig,
		provideTrackingConfig,
		provideEpisodeRepository,
		provideStatusStore,
		provideAlerts,
		providePredictor,
		provideArchiver,
		auth.NewService,
		tracking.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
