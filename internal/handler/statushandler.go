package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tickd/internal/svc"
)

// StatusHandler reports the controller state, connection state, backlog depth
// and pipeline counters.
func StatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, svcCtx.Controller.Status())
	}
}
