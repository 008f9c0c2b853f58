package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tickd/internal/svc"
	"tickd/internal/types"
)

// HistoryHandler serves stored ticks for a symbol over a lookback window read
// from Postgres. The window is capped by request validation, not here.
func HistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.HistoryReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		window := time.Duration(req.Window) * time.Second

		ticks, err := svcCtx.TickStore.History(r.Context(), symbol, window)
		if err != nil {
			httpx.WriteJsonCtx(r.Context(), w, http.StatusInternalServerError,
				types.ErrorResp{Error: "history query failed"})
			return
		}

		resp := types.HistoryResp{
			Symbol: symbol,
			Window: req.Window,
			Ticks:  make([]types.TickResp, 0, len(ticks)),
		}
		for _, tick := range ticks {
			resp.Ticks = append(resp.Ticks, types.TickResp{
				Symbol:    tick.Symbol,
				Timestamp: tick.TS.Format(time.RFC3339Nano),
				Price:     tick.Price,
				Volume:    tick.Volume,
			})
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
