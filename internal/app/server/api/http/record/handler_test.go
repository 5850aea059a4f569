package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gymkeeper/internal/app/server/api/http/middleware/auth"
	"gymkeeper/internal/domain/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, userID int, typ string) (record.ListResponse, error) {
	args := m.Called(ctx, userID, typ)
	return args.Get(0).(record.ListResponse), args.Error(1)
}

func (m *MockService) Find(ctx context.Context, userID int, localID string) (*record.Record, error) {
	args := m.Called(ctx, userID, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

func (m *MockService) Upsert(ctx context.Context, userID int, req record.WriteRequest) (*record.Record, bool, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*record.Record), args.Bool(1), args.Error(2)
}

func (m *MockService) Update(ctx context.Context, userID int, localID string, req record.WriteRequest) (*record.Record, error) {
	args := m.Called(ctx, userID, localID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, userID int, localID string) error {
	args := m.Called(ctx, userID, localID)
	return args.Error(0)
}

func (m *MockService) ModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]record.Record, error) {
	args := m.Called(ctx, userID, since, limit, offset)
	return args.Get(0).([]record.Record), args.Error(1)
}

func (m *MockService) GetStats(ctx context.Context, userID int) (record.StatsResponse, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(record.StatsResponse), args.Error(1)
}

func TestHandler_Create(t *testing.T) {
	userID := 123
	authCtx := auth.WithUserID(context.Background(), userID)

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		input := &createInput{}
		input.Body.LocalID = "w-1"
		input.Body.Type = record.RecTypeWorkout
		input.Body.Payload = json.RawMessage(`{"name":"legs"}`)
		input.Body.ModifiedAt = time.Now()

		svc.On("Upsert", mock.Anything, userID, input.Body).
			Return(&record.Record{ID: 7, LocalID: "w-1"}, true, nil)

		resp, err := h.create(authCtx, input)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), resp.Body.ID)
		assert.Equal(t, "w-1", resp.Body.LocalID)
		assert.Equal(t, "Ok", resp.Body.Status)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		h := NewHandler(nil, nil, nil)

		resp, err := h.create(context.Background(), &createInput{})

		assert.Nil(t, resp)
		assert.Error(t, err)
	})

	t.Run("Error_InvalidData", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		input := &createInput{}
		svc.On("Upsert", mock.Anything, userID, input.Body).
			Return(nil, false, record.ErrInvalidData)

		resp, err := h.create(authCtx, input)

		assert.Nil(t, resp)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid record data")
	})
}

func TestHandler_Update(t *testing.T) {
	userID := 123
	authCtx := auth.WithUserID(context.Background(), userID)

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		input := &updateInput{LocalID: "w-1"}
		input.Body.Type = record.RecTypeWorkout
		input.Body.Payload = json.RawMessage(`{"name":"push"}`)
		input.Body.ModifiedAt = time.Now()

		svc.On("Update", mock.Anything, userID, "w-1", input.Body).
			Return(&record.Record{ID: 7, LocalID: "w-1"}, nil)

		resp, err := h.update(authCtx, input)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), resp.Body.ID)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		input := &updateInput{LocalID: "missing"}
		svc.On("Update", mock.Anything, userID, "missing", input.Body).
			Return(nil, record.ErrNotFound)

		resp, err := h.update(authCtx, input)

		assert.Nil(t, resp)
		assert.Error(t, err)
	})
}

func TestHandler_Delete(t *testing.T) {
	userID := 123
	authCtx := auth.WithUserID(context.Background(), userID)

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		svc.On("Delete", mock.Anything, userID, "w-1").Return(nil)

		resp, err := h.delete(authCtx, &deleteInput{LocalID: "w-1"})

		assert.NoError(t, err)
		assert.Equal(t, "Ok", resp.Body.Status)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		svc.On("Delete", mock.Anything, userID, "missing").Return(record.ErrNotFound)

		resp, err := h.delete(authCtx, &deleteInput{LocalID: "missing"})

		assert.Nil(t, resp)
		assert.Error(t, err)
	})
}

func TestHandler_Find(t *testing.T) {
	userID := 123
	authCtx := auth.WithUserID(context.Background(), userID)

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		stored := &record.Record{ID: 7, LocalID: "w-1", Type: record.RecTypeWorkout}
		svc.On("Find", mock.Anything, userID, "w-1").Return(stored, nil)

		resp, err := h.find(authCtx, &findInput{LocalID: "w-1"})

		assert.NoError(t, err)
		assert.Equal(t, *stored, resp.Body)
	})

	t.Run("Error_Deleted", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, nil, nil)

		svc.On("Find", mock.Anything, userID, "gone").Return(nil, record.ErrRecordDeleted)

		resp, err := h.find(authCtx, &findInput{LocalID: "gone"})

		assert.Nil(t, resp)
		assert.Error(t, err)
	})
}

func TestHandler_List(t *testing.T) {
	userID := 123
	authCtx := auth.WithUserID(context.Background(), userID)

	svc := new(MockService)
	h := NewHandler(svc, nil, nil)

	svc.On("List", mock.Anything, userID, "workout").Return(record.ListResponse{
		Records: []record.Record{{ID: 1}, {ID: 2}},
		Total:   2,
	}, nil)

	resp, err := h.list(authCtx, &listInput{Type: "workout"})

	assert.NoError(t, err)
	assert.Equal(t, 2, resp.Body.Total)
	assert.Len(t, resp.Body.Records, 2)
}
