package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/parcelwatch/fraud-screening/internal/address"
	"github.com/parcelwatch/fraud-screening/pkg/common"
	"github.com/parcelwatch/fraud-screening/pkg/middleware"
	"github.com/parcelwatch/fraud-screening/pkg/pagination"
	"github.com/parcelwatch/fraud-screening/pkg/security"
)

// ScreeningEngine defines the engine methods used by the handler
type ScreeningEngine interface {
	CheckReturn(ctx context.Context, req *ReturnCheckRequest) (*ReturnEvaluation, error)
	CheckOrder(ctx context.Context, req *OrderCheckRequest) (*OrderFraudEvaluation, error)
}

// EvaluationReader defines the repository methods used by the handler
type EvaluationReader interface {
	ListEvaluationsWithTotal(ctx context.Context, flagged *bool, limit, offset int) ([]*ReturnEvaluationRecord, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ReturnEvaluationRecord, error)
	DropOffHotspots(ctx context.Context, limit int) ([]*DropOffHotspot, error)
}

// MockScreeningEngine is a mock implementation of ScreeningEngine
type MockScreeningEngine struct {
	mock.Mock
}

func (m *MockScreeningEngine) CheckReturn(ctx context.Context, req *ReturnCheckRequest) (*ReturnEvaluation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReturnEvaluation), args.Error(1)
}

func (m *MockScreeningEngine) CheckOrder(ctx context.Context, req *OrderCheckRequest) (*OrderFraudEvaluation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderFraudEvaluation), args.Error(1)
}

// MockEvaluationReader is a mock implementation of EvaluationReader
type MockEvaluationReader struct {
	mock.Mock
}

func (m *MockEvaluationReader) ListEvaluationsWithTotal(ctx context.Context, flagged *bool, limit, offset int) ([]*ReturnEvaluationRecord, int64, error) {
	args := m.Called(ctx, flagged, limit, offset)
	records, _ := args.Get(0).([]*ReturnEvaluationRecord)
	return records, int64(args.Int(1)), args.Error(2)
}

func (m *MockEvaluationReader) GetByID(ctx context.Context, id uuid.UUID) (*ReturnEvaluationRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReturnEvaluationRecord), args.Error(1)
}

func (m *MockEvaluationReader) DropOffHotspots(ctx context.Context, limit int) ([]*DropOffHotspot, error) {
	args := m.Called(ctx, limit)
	hotspots, _ := args.Get(0).([]*DropOffHotspot)
	return hotspots, args.Error(1)
}

// MockableHandler provides testable handler methods with mock injection
type MockableHandler struct {
	engine ScreeningEngine
	repo   EvaluationReader
}

func NewMockableHandler(engine ScreeningEngine, repo EvaluationReader) *MockableHandler {
	return &MockableHandler{engine: engine, repo: repo}
}

func (h *MockableHandler) CheckReturn(c *gin.Context) {
	var req ReturnCheckRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	sanitizeReturnCheckRequest(&req)

	eval, err := h.engine.CheckReturn(c.Request.Context(), &req)
	if err != nil {
		respondCheckError(c, err, "failed to evaluate return")
		return
	}

	common.SuccessResponse(c, eval)
}

func (h *MockableHandler) CheckOrder(c *gin.Context) {
	var req OrderCheckRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	req.OrderID = security.SanitizeString(req.OrderID)
	req.Street = security.SanitizeString(req.Street)
	req.Zip = security.SanitizeString(req.Zip)

	eval, err := h.engine.CheckOrder(c.Request.Context(), &req)
	if err != nil {
		respondCheckError(c, err, "failed to evaluate order")
		return
	}

	common.SuccessResponse(c, eval)
}

func (h *MockableHandler) ListEvaluations(c *gin.Context) {
	params := pagination.ParseParams(c)

	var flagged *bool
	if raw := c.Query("flagged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "flagged must be true or false")
			return
		}
		flagged = &v
	}

	evaluations, total, err := h.repo.ListEvaluationsWithTotal(c.Request.Context(), flagged, params.Limit, params.Offset)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list evaluations")
		return
	}

	common.SuccessResponseWithMeta(c, evaluations, pagination.BuildMeta(params.Limit, params.Offset, total))
}

func (h *MockableHandler) GetEvaluation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid evaluation ID")
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.ErrorResponse(c, http.StatusNotFound, "evaluation not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get evaluation")
		return
	}

	common.SuccessResponse(c, rec)
}

func (h *MockableHandler) DropOffHotspots(c *gin.Context) {
	params := pagination.ParseParams(c)

	hotspots, err := h.repo.DropOffHotspots(c.Request.Context(), params.Limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get drop-off hotspots")
		return
	}

	common.SuccessResponse(c, hotspots)
}

func setupTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	c.Request = req

	return c, w
}

func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	return response
}

func validReturnCheckBody() map[string]interface{} {
	return map[string]interface{}{
		"order_id": "ORD-1001",
		"shipping_address": map[string]interface{}{
			"city": "Austin",
			"zip":  "78701",
		},
		"tracking_number":         "TRK123456",
		"carrier":                 "usps",
		"correct_item_weight_lbs": 5.0,
	}
}

// ============================================================================
// CheckReturn Handler Tests
// ============================================================================

func TestHandler_CheckReturn_Fraud(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	mockEngine.On("CheckReturn", mock.Anything, mock.MatchedBy(func(req *ReturnCheckRequest) bool {
		return req.OrderID == "ORD-1001" && req.Carrier == "usps"
	})).Return(&ReturnEvaluation{
		IsFraud:           true,
		DistanceMiles:     18.5,
		DropOffCity:       "Cedar Park",
		ShippingCity:      "Austin",
		ReturnWeightLbs:   3.0,
		ExpectedWeightLbs: 5.0,
		DistanceFlagged:   true,
		WeightFlagged:     true,
	}, nil)

	c, w := setupTestContext("POST", "/api/v1/screening/returns/check", validReturnCheckBody())

	handler.CheckReturn(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	assert.True(t, response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.True(t, data["is_fraud"].(bool))
	assert.True(t, data["distance_flagged"].(bool))
	assert.True(t, data["weight_flagged"].(bool))
	assert.InDelta(t, 18.5, data["distance_miles"].(float64), 1e-9)
	assert.InDelta(t, 3.0, data["return_weight_lbs"].(float64), 1e-9)
	assert.InDelta(t, 5.0, data["expected_weight_lbs"].(float64), 1e-9)
	assert.Equal(t, "Cedar Park", data["drop_off_city"])
	assert.Equal(t, "Austin", data["shipping_city"])
	mockEngine.AssertExpectations(t)
}

func TestHandler_CheckReturn_MissingTrackingNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	body := validReturnCheckBody()
	delete(body, "tracking_number")

	c, w := setupTestContext("POST", "/api/v1/screening/returns/check", body)

	handler.CheckReturn(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockEngine.AssertNotCalled(t, "CheckReturn", mock.Anything, mock.Anything)
}

func TestHandler_CheckReturn_MalformedTrackingNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	body := validReturnCheckBody()
	body["tracking_number"] = "abc"

	c, w := setupTestContext("POST", "/api/v1/screening/returns/check", body)

	handler.CheckReturn(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockEngine.AssertNotCalled(t, "CheckReturn", mock.Anything, mock.Anything)
}

func TestHandler_CheckReturn_ZeroWeight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	body := validReturnCheckBody()
	body["correct_item_weight_lbs"] = 0

	c, w := setupTestContext("POST", "/api/v1/screening/returns/check", body)

	handler.CheckReturn(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockEngine.AssertNotCalled(t, "CheckReturn", mock.Anything, mock.Anything)
}

func TestHandler_CheckReturn_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "upstream unavailable",
			engineErr:  ErrUpstreamUnavailable,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Error fetching tracking info from carrier",
		},
		{
			name:       "tracking not found",
			engineErr:  ErrTrackingNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "Tracking details not found",
		},
		{
			name:       "incomplete drop-off location",
			engineErr:  ErrIncompleteLocation,
			wantStatus: http.StatusBadRequest,
			wantError:  "Incomplete drop-off location info",
		},
		{
			name:       "geocode failure",
			engineErr:  ErrGeocodeFailure,
			wantStatus: http.StatusBadRequest,
			wantError:  "Geocoding failed",
		},
		{
			name:       "wrapped geocode failure",
			engineErr:  fmt.Errorf("%w: shipping Austin 78701: zero results", ErrGeocodeFailure),
			wantStatus: http.StatusBadRequest,
			wantError:  "Geocoding failed",
		},
		{
			name:       "missing weight",
			engineErr:  ErrMissingWeight,
			wantStatus: http.StatusBadRequest,
			wantError:  "Return package weight not found",
		},
		{
			name:       "unexpected error",
			engineErr:  errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to evaluate return",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)

			mockEngine := new(MockScreeningEngine)
			handler := NewMockableHandler(mockEngine, nil)

			mockEngine.On("CheckReturn", mock.Anything, mock.Anything).Return(nil, tt.engineErr)

			c, w := setupTestContext("POST", "/api/v1/screening/returns/check", validReturnCheckBody())

			handler.CheckReturn(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			response := parseResponse(w)
			assert.False(t, response["success"].(bool))
			assert.Equal(t, tt.wantError, response["error"])
		})
	}
}

// ============================================================================
// CheckOrder Handler Tests
// ============================================================================

func TestHandler_CheckOrder_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	mockEngine.On("CheckOrder", mock.Anything, mock.MatchedBy(func(req *OrderCheckRequest) bool {
		return req.OrderID == "ORD-2000" && req.Street == "312 Arbor Downs"
	})).Return(&OrderFraudEvaluation{
		IsFraud:          false,
		MatchedEntries:   1,
		NormalizedStreet: "312 arbor downs",
	}, nil)

	c, w := setupTestContext("POST", "/api/v1/screening/orders/check", map[string]interface{}{
		"order_id": "ORD-2000",
		"street":   "312 Arbor Downs",
		"zip":      "78701",
	})

	handler.CheckOrder(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	assert.True(t, response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.False(t, data["is_fraud"].(bool))
	assert.Equal(t, float64(1), data["matched_entries"])
	assert.Equal(t, "312 arbor downs", data["normalized_street"])
	mockEngine.AssertExpectations(t)
}

func TestHandler_CheckOrder_InvalidAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	mockEngine.On("CheckOrder", mock.Anything, mock.Anything).Return(nil,
		fmt.Errorf("%w: %q", address.ErrInvalidFormat, "Arbor Downs"))

	c, w := setupTestContext("POST", "/api/v1/screening/orders/check", map[string]interface{}{
		"order_id": "ORD-2000",
		"street":   "Arbor Downs",
		"zip":      "78701",
	})

	handler.CheckOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseResponse(w)
	assert.Equal(t, "Invalid address format", response["error"])
}

func TestHandler_CheckOrder_MissingStreet(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockEngine := new(MockScreeningEngine)
	handler := NewMockableHandler(mockEngine, nil)

	c, w := setupTestContext("POST", "/api/v1/screening/orders/check", map[string]interface{}{
		"order_id": "ORD-2000",
		"zip":      "78701",
	})

	handler.CheckOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockEngine.AssertNotCalled(t, "CheckOrder", mock.Anything, mock.Anything)
}

// ============================================================================
// ListEvaluations Handler Tests
// ============================================================================

func TestHandler_ListEvaluations_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	records := []*ReturnEvaluationRecord{
		{ID: uuid.New(), OrderID: "ORD-1001", IsFraud: true},
		{ID: uuid.New(), OrderID: "ORD-1002", IsFraud: false},
	}

	mockRepo.On("ListEvaluationsWithTotal", mock.Anything, (*bool)(nil), 20, 0).Return(records, 2, nil)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations", nil)

	handler.ListEvaluations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	assert.True(t, response["success"].(bool))
	assert.NotNil(t, response["data"])
	assert.NotNil(t, response["meta"])
	mockRepo.AssertExpectations(t)
}

func TestHandler_ListEvaluations_FlaggedFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	mockRepo.On("ListEvaluationsWithTotal", mock.Anything, mock.MatchedBy(func(flagged *bool) bool {
		return flagged != nil && *flagged
	}), 20, 0).Return([]*ReturnEvaluationRecord{}, 0, nil)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations?flagged=true", nil)

	handler.ListEvaluations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestHandler_ListEvaluations_BadFlaggedParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations?flagged=maybe", nil)

	handler.ListEvaluations(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "ListEvaluationsWithTotal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_ListEvaluations_RepositoryError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	mockRepo.On("ListEvaluationsWithTotal", mock.Anything, (*bool)(nil), 20, 0).Return(nil, 0, errors.New("database error"))

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations", nil)

	handler.ListEvaluations(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockRepo.AssertExpectations(t)
}

// ============================================================================
// GetEvaluation Handler Tests
// ============================================================================

func TestHandler_GetEvaluation_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(&ReturnEvaluationRecord{ID: id, OrderID: "ORD-1001"}, nil)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	handler.GetEvaluation(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	assert.True(t, response["success"].(bool))
	mockRepo.AssertExpectations(t)
}

func TestHandler_GetEvaluation_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations/invalid-uuid", nil)
	c.Params = gin.Params{{Key: "id", Value: "invalid-uuid"}}

	handler.GetEvaluation(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetEvaluation_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(nil, pgx.ErrNoRows)

	c, w := setupTestContext("GET", "/api/v1/screening/evaluations/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	handler.GetEvaluation(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRepo.AssertExpectations(t)
}

// ============================================================================
// DropOffHotspots Handler Tests
// ============================================================================

func TestHandler_DropOffHotspots_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	hotspots := []*DropOffHotspot{
		{Cell: "87489e2c9ffffff", FraudCount: 7},
		{Cell: "87489e2c8ffffff", FraudCount: 3},
	}

	mockRepo.On("DropOffHotspots", mock.Anything, 20).Return(hotspots, nil)

	c, w := setupTestContext("GET", "/api/v1/screening/stats/drop-off-hotspots", nil)

	handler.DropOffHotspots(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	assert.True(t, response["success"].(bool))
	mockRepo.AssertExpectations(t)
}

func TestHandler_DropOffHotspots_RepositoryError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockEvaluationReader)
	handler := NewMockableHandler(nil, mockRepo)

	mockRepo.On("DropOffHotspots", mock.Anything, 20).Return(nil, errors.New("database error"))

	c, w := setupTestContext("GET", "/api/v1/screening/stats/drop-off-hotspots", nil)

	handler.DropOffHotspots(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockRepo.AssertExpectations(t)
}
