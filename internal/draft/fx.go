package draft

import (
	"github.com/smallbiznis/rampline/internal/draft/service"
	"go.uber.org/fx"
)

var Module = fx.Module("draft.service",
	fx.Provide(service.NewService),
)
