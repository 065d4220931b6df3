package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/invobook/invobook/internal/clock"
	"github.com/invobook/invobook/internal/config"
	"github.com/invobook/invobook/internal/logger"
	"github.com/invobook/invobook/internal/migration"
	"github.com/invobook/invobook/internal/scheduler"
	"github.com/invobook/invobook/internal/server"
	"github.com/invobook/invobook/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
