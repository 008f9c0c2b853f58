package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"tickd/internal/svc"
)

func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/api/v1/feed/start",
				Handler: FeedStartHandler(svcCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/api/v1/feed/stop",
				Handler: FeedStopHandler(svcCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/status",
				Handler: StatusHandler(svcCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/metrics/:symbol",
				Handler: MetricsHandler(svcCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/history/:symbol",
				Handler: HistoryHandler(svcCtx),
			},
		},
	)
}
