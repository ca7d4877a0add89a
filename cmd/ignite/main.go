package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/migration"
	"github.com/f3impact/ignite/internal/observability"
	"github.com/f3impact/ignite/internal/server"
	"github.com/f3impact/ignite/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		server.Module,
		migration.Module,
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
