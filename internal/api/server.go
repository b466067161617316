package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chartglass/overlay/internal/controller"
	"github.com/chartglass/overlay/internal/engine"
	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/render"
	"github.com/chartglass/overlay/internal/snapshot"
	"github.com/chartglass/overlay/internal/winsys"
)

// Service is the control-plane surface the HTTP layer binds to.
type Service interface {
	StartOverlay(ctx context.Context, handle winsys.Handle, lines []lineset.Line, settings *render.Settings) (engine.Status, error)
	StopOverlay(ctx context.Context) (engine.Status, error)
	PauseOverlay(ctx context.Context) (engine.Status, error)
	ResumeOverlay(ctx context.Context) (engine.Status, error)
	GetStatus(ctx context.Context) (engine.Status, error)
	GetStats(ctx context.Context) (engine.PerformanceStats, error)
	SetTargetWindow(ctx context.Context, handle winsys.Handle) (engine.Status, error)
	FindWindows(ctx context.Context, title string) ([]controller.WindowInfo, error)
	ListLines(ctx context.Context) ([]lineset.Line, uint64, error)
	ReplaceLines(ctx context.Context, lines []lineset.Line) ([]lineset.Line, uint64, error)
	AddLine(ctx context.Context, line lineset.Line) ([]lineset.Line, uint64, error)
	RemoveLine(ctx context.Context, name string) error
	ClearLines(ctx context.Context) error
	SetPriceRange(ctx context.Context, min, max float64) (engine.Status, error)
	SetCurrentPrice(ctx context.Context, price float64) error
	GetRenderSettings(ctx context.Context) (render.Settings, error)
	SetRenderSettings(ctx context.Context, settings render.Settings) (render.Settings, error)
	SetLineOpacity(ctx context.Context, opacity float64) error
	SetLabelOpacity(ctx context.Context, opacity float64) error
	SetWindowAlpha(ctx context.Context, alpha int) error
	SetWindowFollowing(ctx context.Context, enabled bool) (engine.Status, error)
	TakeFrameSnapshot(ctx context.Context, notes string) (snapshot.Meta, error)
	TakeScreenSnapshot(ctx context.Context, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

type statusOutput struct {
	Body engine.Status
}

// NewServer wires the REST endpoints and the websocket event stream.
func NewServer(svc Service, hub *engine.Hub) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Overlay Control API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/events", eventStream(hub))

	registerSessionHandlers(api, svc)
	registerLineHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *winsys.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case winsys.CodeValidation, winsys.CodeInvalidRange:
			return huma.Error400BadRequest(coded.Message)
		case winsys.CodeInvalidHandle, winsys.CodeTargetLost:
			return huma.Error404NotFound(coded.Message)
		case winsys.CodeAlreadyRunning:
			return huma.Error409Conflict(coded.Message)
		case winsys.CodeNotRunning:
			return huma.Error409Conflict(coded.Message)
		case winsys.CodeBackendUnavailable:
			return huma.Error501NotImplemented(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, snapshot.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, snapshot.ErrInvalidID) {
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
