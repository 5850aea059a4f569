package sync

import (
	"context"
	"log/slog"

	"gymkeeper/internal/app/server/api/http/middleware/auth"
	"gymkeeper/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getChangesOp(), h.getChanges)
	huma.Register(api, h.getStatusOp(), h.getStatus)
}

func (h *Handler) getChanges(ctx context.Context, input *getChangesInput) (*getChangesOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	response, err := h.service.GetChanges(ctx, userID, sync.GetChangesRequest{
		Since:  input.Since,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &getChangesOutput{Body: *response}, nil
}

func (h *Handler) getStatus(ctx context.Context, _ *getStatusInput) (*getStatusOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	status, err := h.service.GetStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &getStatusOutput{Body: *status}, nil
}
