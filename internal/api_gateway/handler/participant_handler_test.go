package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/api_gateway/service"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
)

type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) Enroll(ctx context.Context, referralCode, sponsorCode, correlationID string) (*participant.Participant, error) {
	args := m.Called(ctx, referralCode, sponsorCode, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockEnrollmentService) GetParticipant(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockEnrollmentService) GetTree(ctx context.Context, id uuid.UUID) (*service.TreeView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TreeView), args.Error(1)
}

func (m *MockEnrollmentService) GetUpline(ctx context.Context, id uuid.UUID) ([]participant.UplineEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]participant.UplineEntry), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	return r
}

func TestParticipantHandler_Enroll(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		enrolled, _ := participant.New("NEW-MEMBER")
		mockService.On("Enroll", mock.Anything, "NEW-MEMBER", "SPONSOR-1", mock.Anything).Return(enrolled, nil)

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		reqBody := EnrollParticipantRequest{ReferralCode: "NEW-MEMBER", SponsorCode: "SPONSOR-1"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody ParticipantResponse
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, enrolled.ID.String(), responseBody.ID)
		assert.Equal(t, "NEW-MEMBER", responseBody.ReferralCode)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBufferString(`{"invalid`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("DuplicateReferralCode", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		mockService.On("Enroll", mock.Anything, "TAKEN-CODE", "", mock.Anything).
			Return(nil, participant.ErrDuplicateReferralCode)

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		reqBody := EnrollParticipantRequest{ReferralCode: "TAKEN-CODE"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("SponsorNotFound", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		mockService.On("Enroll", mock.Anything, "NEW-MEMBER", "NOBODY-1", mock.Anything).
			Return(nil, participant.ErrSponsorNotFound)

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		reqBody := EnrollParticipantRequest{ReferralCode: "NEW-MEMBER", SponsorCode: "NOBODY-1"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("PlacementIntegrityFailure", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		mockService.On("Enroll", mock.Anything, "NEW-MEMBER", "SPONSOR-1", mock.Anything).
			Return(nil, participant.TreeIntegrityError{ParticipantID: uuid.New(), Reason: "no open slot found within iteration ceiling"})

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		reqBody := EnrollParticipantRequest{ReferralCode: "NEW-MEMBER", SponsorCode: "SPONSOR-1"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		mockService.On("Enroll", mock.Anything, "NEW-MEMBER", "", mock.Anything).
			Return(nil, errors.New("service unavailable"))

		router := setupTestRouter()
		router.POST("/participants", h.Enroll)

		reqBody := EnrollParticipantRequest{ReferralCode: "NEW-MEMBER"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/participants", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestParticipantHandler_GetTree(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		root, _ := participant.New("ROOT")
		left, _ := participant.New("LEFT")
		view := &service.TreeView{Participant: root, LeftChild: left}

		mockService.On("GetTree", mock.Anything, root.ID).Return(view, nil)

		router := setupTestRouter()
		router.GET("/participants/:id/tree", h.GetTree)

		req, _ := http.NewRequest(http.MethodGet, "/participants/"+root.ID.String()+"/tree", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))
		require.NotNil(t, topLevelResponse.Data)

		var tree TreeResponse
		dataBytes, _ := json.Marshal(topLevelResponse.Data)
		require.NoError(t, json.Unmarshal(dataBytes, &tree))

		assert.Equal(t, root.ID.String(), tree.Participant.ID)
		require.NotNil(t, tree.LeftChild)
		assert.Equal(t, left.ID.String(), tree.LeftChild.ID)
		assert.Nil(t, tree.RightChild)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/participants/:id/tree", h.GetTree)

		req, _ := http.NewRequest(http.MethodGet, "/participants/not-a-uuid/tree", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		id := uuid.New()
		mockService.On("GetTree", mock.Anything, id).
			Return(nil, participant.ErrParticipantNotFound{ParticipantID: id})

		router := setupTestRouter()
		router.GET("/participants/:id/tree", h.GetTree)

		req, _ := http.NewRequest(http.MethodGet, "/participants/"+id.String()+"/tree", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestParticipantHandler_GetUpline(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockEnrollmentService)
		h := NewParticipantHandler(logger, mockService)

		id := uuid.New()
		chain := []participant.UplineEntry{
			{ParticipantID: uuid.New(), Level: 1},
			{ParticipantID: uuid.New(), Level: 2},
		}
		mockService.On("GetUpline", mock.Anything, id).Return(chain, nil)

		router := setupTestRouter()
		router.GET("/participants/:id/upline", h.GetUpline)

		req, _ := http.NewRequest(http.MethodGet, "/participants/"+id.String()+"/upline", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))

		var entries []UplineEntryResponse
		dataBytes, _ := json.Marshal(topLevelResponse.Data)
		require.NoError(t, json.Unmarshal(dataBytes, &entries))

		require.Len(t, entries, 2)
		assert.Equal(t, chain[0].ParticipantID.String(), entries[0].ParticipantID)
		assert.Equal(t, 1, entries[0].Level)
		mockService.AssertExpectations(t)
	})
}

var _ service.EnrollmentService = (*MockEnrollmentService)(nil)
