package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rampline/internal/clock"
	"github.com/smallbiznis/rampline/internal/config"
	"github.com/smallbiznis/rampline/internal/observability"
	"github.com/smallbiznis/rampline/internal/server"
	"github.com/smallbiznis/rampline/pkg/db"
	"go.uber.org/fx"
)

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func main() {
	fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		server.Module,
	).Run()
}
