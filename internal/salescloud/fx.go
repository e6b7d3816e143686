package salescloud

import (
	"github.com/smallbiznis/rampline/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the backend client from application config.
func NewFromConfig(appCfg config.Config, log *zap.Logger) *Client {
	return NewClient(Config{
		BaseURL:    appCfg.Backend.BaseURL,
		APIVersion: appCfg.Backend.APIVersion,
		AuthToken:  appCfg.Backend.AuthToken,
	}, log)
}

var Module = fx.Module("salescloud.client",
	fx.Provide(NewFromConfig),
)
