package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartglass/overlay/internal/controller"
	"github.com/chartglass/overlay/internal/engine"
	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/render"
	"github.com/chartglass/overlay/internal/winsys"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type startInput struct {
		Body struct {
			Handle   winsys.Handle    `json:"handle" required:"true" doc:"Window handle of the target to overlay"`
			Lines    []lineset.Line   `json:"lines,omitempty" doc:"Initial line batch"`
			Settings *render.Settings `json:"settings,omitempty" doc:"Render settings override"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "start-overlay", Method: http.MethodPost, Path: "/api/v1/session/start", Summary: "Start the overlay against a target window", Tags: []string{"Session"}},
		func(ctx context.Context, input *startInput) (*statusOutput, error) {
			status, err := svc.StartOverlay(ctx, input.Body.Handle, input.Body.Lines, input.Body.Settings)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "stop-overlay", Method: http.MethodPost, Path: "/api/v1/session/stop", Summary: "Stop the overlay and release its resources", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.StopOverlay(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "pause-overlay", Method: http.MethodPost, Path: "/api/v1/session/pause", Summary: "Suspend frame production", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.PauseOverlay(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "resume-overlay", Method: http.MethodPost, Path: "/api/v1/session/resume", Summary: "Resume frame production", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.ResumeOverlay(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-status", Method: http.MethodGet, Path: "/api/v1/session/status", Summary: "Get the current engine status", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.GetStatus(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type statsOutput struct {
		Body engine.PerformanceStats
	}
	huma.Register(api, huma.Operation{OperationID: "get-stats", Method: http.MethodGet, Path: "/api/v1/session/stats", Summary: "Get session performance counters", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			stats, err := svc.GetStats(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statsOutput{Body: stats}, nil
		})

	type targetInput struct {
		Body struct {
			Handle winsys.Handle `json:"handle" required:"true"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-target-window", Method: http.MethodPut, Path: "/api/v1/session/target", Summary: "Re-target the live session to another window", Tags: []string{"Session"}},
		func(ctx context.Context, input *targetInput) (*statusOutput, error) {
			status, err := svc.SetTargetWindow(ctx, input.Body.Handle)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type followInput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-window-following", Method: http.MethodPut, Path: "/api/v1/session/following", Summary: "Toggle target window following", Tags: []string{"Session"}},
		func(ctx context.Context, input *followInput) (*statusOutput, error) {
			status, err := svc.SetWindowFollowing(ctx, input.Body.Enabled)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type findWindowsInput struct {
		Title string `query:"title" required:"true" doc:"Window title substring to match"`
	}
	type findWindowsOutput struct {
		Body struct {
			Windows []controller.WindowInfo `json:"windows"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "find-windows", Method: http.MethodGet, Path: "/api/v1/windows", Summary: "List candidate target windows by title", Tags: []string{"Session"}},
		func(ctx context.Context, input *findWindowsInput) (*findWindowsOutput, error) {
			windows, err := svc.FindWindows(ctx, input.Title)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &findWindowsOutput{}
			out.Body.Windows = windows
			return out, nil
		})
}
