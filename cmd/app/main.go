package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/export"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/service"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/storage"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			db.NewGormClient,
			newLogger,
			storage.NewImageStore,
			func(s *storage.ImageStore) service.ImageStore { return s },
			export.NewPDFRenderer,
			service.NewUserService,
			service.NewCatalogService,
			service.NewRecipeService,
			service.NewMembershipService,
			service.NewShoppingService,
			service.NewFollowService,
			transport.NewHTTPServer,
		),
		fx.Invoke(func(*transport.HTTPServer) {}),
	)

	app.Run()
}

func newLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
