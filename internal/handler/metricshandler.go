package handler

import (
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tickd/internal/ingest"
	"tickd/internal/svc"
	"tickd/internal/types"
)

// MetricsHandler serves the per-symbol aggregates: last price, percent change
// and the moving average over the configured window. Unknown symbols are 404.
func MetricsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SymbolReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		metrics, ok := svcCtx.Pipeline.Metrics(symbol)
		if !ok {
			// The in-memory window is empty after a restart; fall back to the
			// cached last price so the dashboard is not blank until the feed
			// warms up again.
			if tick, hit := svcCtx.LatestCache.Get(r.Context(), symbol); hit {
				httpx.OkJsonCtx(r.Context(), w, ingest.Metrics{
					Symbol:    tick.Symbol,
					LastPrice: tick.Price,
					UpdatedAt: tick.TS,
				})
				return
			}
			httpx.WriteJsonCtx(r.Context(), w, http.StatusNotFound,
				types.ErrorResp{Error: "unknown symbol: " + symbol})
			return
		}
		httpx.OkJsonCtx(r.Context(), w, metrics)
	}
}
