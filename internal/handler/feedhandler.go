package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tickd/internal/ingest"
	"tickd/internal/svc"
	"tickd/internal/types"
)

// FeedStartHandler transitions the controller to Running. Starting an already
// running feed is rejected with 409 and leaves the pipeline untouched.
func FeedStartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Controller.Start(); err != nil {
			writeControllerError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, types.FeedStateResp{State: svcCtx.Controller.State().String()})
	}
}

// FeedStopHandler transitions the controller to Idle, flushing staged ticks
// before returning.
func FeedStopHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Controller.Stop(); err != nil {
			writeControllerError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, types.FeedStateResp{State: svcCtx.Controller.State().String()})
	}
}

func writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ingest.ErrAlreadyRunning) || errors.Is(err, ingest.ErrAlreadyIdle) {
		status = http.StatusConflict
	}
	httpx.WriteJsonCtx(r.Context(), w, status, types.ErrorResp{Error: err.Error()})
}
