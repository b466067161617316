package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/render"
)

type lineListOutput struct {
	Body struct {
		Lines    []lineset.Line `json:"lines"`
		Revision uint64         `json:"revision"`
	}
}

func lineList(lines []lineset.Line, revision uint64) *lineListOutput {
	out := &lineListOutput{}
	out.Body.Lines = lines
	out.Body.Revision = revision
	return out
}

func registerLineHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "list-lines", Method: http.MethodGet, Path: "/api/v1/lines", Summary: "List current reference lines", Tags: []string{"Lines"}},
		func(ctx context.Context, input *struct{}) (*lineListOutput, error) {
			lines, rev, err := svc.ListLines(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return lineList(lines, rev), nil
		})

	type replaceLinesInput struct {
		Body struct {
			Lines []lineset.Line `json:"lines" required:"true"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "replace-lines", Method: http.MethodPut, Path: "/api/v1/lines", Summary: "Replace the whole line batch atomically", Tags: []string{"Lines"}},
		func(ctx context.Context, input *replaceLinesInput) (*lineListOutput, error) {
			lines, rev, err := svc.ReplaceLines(ctx, input.Body.Lines)
			if err != nil {
				return nil, mapErr(err)
			}
			return lineList(lines, rev), nil
		})

	type addLineInput struct {
		Body lineset.Line
	}
	huma.Register(api, huma.Operation{OperationID: "add-line", Method: http.MethodPost, Path: "/api/v1/lines", Summary: "Add or update one line by name", Tags: []string{"Lines"}},
		func(ctx context.Context, input *addLineInput) (*lineListOutput, error) {
			lines, rev, err := svc.AddLine(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return lineList(lines, rev), nil
		})

	type lineNameInput struct {
		Name string `path:"name"`
	}
	type okOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	ok := func() *okOutput {
		out := &okOutput{}
		out.Body.Status = "ok"
		return out
	}

	huma.Register(api, huma.Operation{OperationID: "remove-line", Method: http.MethodDelete, Path: "/api/v1/lines/{name}", Summary: "Remove one line by name", Tags: []string{"Lines"}},
		func(ctx context.Context, input *lineNameInput) (*okOutput, error) {
			if err := svc.RemoveLine(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-lines", Method: http.MethodDelete, Path: "/api/v1/lines", Summary: "Remove all lines", Tags: []string{"Lines"}},
		func(ctx context.Context, input *struct{}) (*okOutput, error) {
			if err := svc.ClearLines(ctx); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})

	type priceRangeInput struct {
		Body struct {
			Min float64 `json:"min" required:"true"`
			Max float64 `json:"max" required:"true"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-price-range", Method: http.MethodPut, Path: "/api/v1/price/range", Summary: "Set the mapped price window", Tags: []string{"Price"}},
		func(ctx context.Context, input *priceRangeInput) (*statusOutput, error) {
			status, err := svc.SetPriceRange(ctx, input.Body.Min, input.Body.Max)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type currentPriceInput struct {
		Body struct {
			Price float64 `json:"price" required:"true"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-current-price", Method: http.MethodPut, Path: "/api/v1/price/current", Summary: "Move the live price marker", Tags: []string{"Price"}},
		func(ctx context.Context, input *currentPriceInput) (*okOutput, error) {
			if err := svc.SetCurrentPrice(ctx, input.Body.Price); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})

	type settingsOutput struct {
		Body render.Settings
	}
	huma.Register(api, huma.Operation{OperationID: "get-render-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Get active render settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			settings, err := svc.GetRenderSettings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &settingsOutput{Body: settings}, nil
		})

	type setSettingsInput struct {
		Body render.Settings
	}
	huma.Register(api, huma.Operation{OperationID: "set-render-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Replace render settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *setSettingsInput) (*settingsOutput, error) {
			settings, err := svc.SetRenderSettings(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &settingsOutput{Body: settings}, nil
		})

	type opacityInput struct {
		Body struct {
			Opacity float64 `json:"opacity" required:"true" minimum:"0" maximum:"1"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-line-opacity", Method: http.MethodPut, Path: "/api/v1/settings/line-opacity", Summary: "Set the global stroke opacity multiplier", Tags: []string{"Settings"}},
		func(ctx context.Context, input *opacityInput) (*okOutput, error) {
			if err := svc.SetLineOpacity(ctx, input.Body.Opacity); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-label-opacity", Method: http.MethodPut, Path: "/api/v1/settings/label-opacity", Summary: "Set the label background opacity", Tags: []string{"Settings"}},
		func(ctx context.Context, input *opacityInput) (*okOutput, error) {
			if err := svc.SetLabelOpacity(ctx, input.Body.Opacity); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})

	type alphaInput struct {
		Body struct {
			Alpha int `json:"alpha" required:"true" minimum:"0" maximum:"255"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-window-alpha", Method: http.MethodPut, Path: "/api/v1/settings/window-alpha", Summary: "Set whole-surface transparency", Tags: []string{"Settings"}},
		func(ctx context.Context, input *alphaInput) (*okOutput, error) {
			if err := svc.SetWindowAlpha(ctx, input.Body.Alpha); err != nil {
				return nil, mapErr(err)
			}
			return ok(), nil
		})
}
