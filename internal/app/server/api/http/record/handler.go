package record

import (
	"context"
	"errors"
	"log/slog"

	"gymkeeper/internal/app/server/api/http/middleware/auth"
	"gymkeeper/internal/domain/record"

	"github.com/danielgtaylor/huma/v2"
)

type Handler struct {
	service    record.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service record.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	response, err := h.service.List(ctx, userID, input.Type)
	if err != nil {
		return nil, err
	}

	return &listOutput{Body: response}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	rec, err := h.service.Find(ctx, userID, input.LocalID)
	if err != nil {
		switch {
		case errors.Is(err, record.ErrNotFound):
			return nil, huma.Error404NotFound("record not found")
		case errors.Is(err, record.ErrRecordDeleted):
			return nil, huma.Error410Gone("record was deleted")
		}
		return nil, err
	}

	return &findOutput{Body: *rec}, nil
}

// create is an idempotent upsert keyed by the client-assigned local id.
// A replayed create returns the already stored row instead of failing.
func (h *Handler) create(ctx context.Context, input *createInput) (*writeOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	rec, _, err := h.service.Upsert(ctx, userID, input.Body)
	if err != nil {
		if errors.Is(err, record.ErrInvalidData) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, err
	}

	return &writeOutput{
		Body: writeResponse{
			ID:      rec.ID,
			LocalID: rec.LocalID,
			Status:  "Ok",
		},
	}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*writeOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	rec, err := h.service.Update(ctx, userID, input.LocalID, input.Body)
	if err != nil {
		switch {
		case errors.Is(err, record.ErrNotFound):
			return nil, huma.Error404NotFound("record not found")
		case errors.Is(err, record.ErrInvalidData):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, err
	}

	return &writeOutput{
		Body: writeResponse{
			ID:      rec.ID,
			LocalID: rec.LocalID,
			Status:  "Ok",
		},
	}, nil
}

func (h *Handler) delete(ctx context.Context, input *deleteInput) (*deleteOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	if err := h.service.Delete(ctx, userID, input.LocalID); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, huma.Error404NotFound("record not found")
		}
		return nil, err
	}

	return &deleteOutput{
		Body: statusResponse{Status: "Ok"},
	}, nil
}
