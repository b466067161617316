package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartglass/overlay/internal/snapshot"
)

func registerSnapshotHandlers(api huma.API, svc Service) {
	type captureInput struct {
		Body struct {
			Kind  string `json:"kind" enum:"frame,screen" default:"frame" doc:"frame stores the overlay's rendered image, screen captures the target region"`
			Notes string `json:"notes,omitempty"`
		}
	}
	type metaOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "take-snapshot", Method: http.MethodPost, Path: "/api/v1/snapshots", Summary: "Capture and store a snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *captureInput) (*metaOutput, error) {
			var meta snapshot.Meta
			var err error
			if input.Body.Kind == snapshot.KindScreen {
				meta, err = svc.TakeScreenSnapshot(ctx, input.Body.Notes)
			} else {
				meta, err = svc.TakeFrameSnapshot(ctx, input.Body.Notes)
			}
			if err != nil {
				return nil, mapErr(err)
			}
			return &metaOutput{Body: meta}, nil
		})

	type snapshotListOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List stored snapshots, newest first", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*snapshotListOutput, error) {
			metas, err := svc.ListSnapshots(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &snapshotListOutput{}
			out.Body.Snapshots = metas
			return out, nil
		})

	type snapshotIDInput struct {
		ID string `path:"id"`
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*metaOutput, error) {
			meta, err := svc.GetSnapshot(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &metaOutput{Body: meta}, nil
		})

	type imageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot-image", Method: http.MethodGet, Path: "/api/v1/snapshots/{id}/image", Summary: "Download the snapshot image", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*imageOutput, error) {
			data, format, err := svc.ReadSnapshotImage(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &imageOutput{ContentType: "image/" + format, Body: data}, nil
		})

	type okOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{id}", Summary: "Delete a stored snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*okOutput, error) {
			if err := svc.DeleteSnapshot(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &okOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
