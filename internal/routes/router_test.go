package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/config"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/service"
	"branch-ledger/pkg/types"
	"branch-ledger/pkg/validation"
)

type RouterTestSuite struct {
	suite.Suite
	echo         *echo.Echo
	ledger       *ledgerServiceMock
	availability *availabilityServiceMock
	transfers    *transferServiceMock
	locations    *locationServiceMock
	pinger       *pingerStub
	token        string
	actor        entities.Actor
}

func (s *RouterTestSuite) SetupTest() {
	logger := zaptest.NewLogger(s.T())
	s.ledger = &ledgerServiceMock{}
	s.availability = &availabilityServiceMock{}
	s.transfers = &transferServiceMock{}
	s.locations = &locationServiceMock{}
	s.pinger = &pingerStub{}

	jwtSvc := service.NewJWTService("test-secret", time.Hour, logger)
	s.actor = entities.Actor{ID: 11, Name: "clerk"}
	token, err := jwtSvc.GenerateToken(s.actor)
	s.Require().NoError(err)
	s.token = token

	s.echo = echo.New()
	s.echo.Validator = validation.New()
	InitRouter(s.echo, Services{
		Ledger:       s.ledger,
		Availability: s.availability,
		Transfer:     s.transfers,
		Location:     s.locations,
	}, jwtSvc, s.pinger, logger)
}

func (s *RouterTestSuite) TearDownTest() {
	s.ledger.AssertExpectations(s.T())
	s.availability.AssertExpectations(s.T())
	s.transfers.AssertExpectations(s.T())
	s.locations.AssertExpectations(s.T())
}

func (s *RouterTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Body    json.RawMessage        `json:"body"`
	Details map[string]interface{} `json:"details"`
}

func (s *RouterTestSuite) decode(rec *httptest.ResponseRecorder) envelope {
	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (s *RouterTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)

	s.pinger.err = errors.New("down")
	rec = s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *RouterTestSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/health", nil)
	rec := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "http_requests_total")
}

func (s *RouterTestSuite) TestRequiresToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/branches", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/branches", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterTestSuite) TestAddStock_PassesActorFromToken() {
	s.ledger.On("AddStock", mock.Anything, mock.MatchedBy(func(p services.AddStockParams) bool {
		return p.PartID == 1 && p.BranchID == 2 && p.Quantity == 5 &&
			p.Action == constants.MovementScanAdd && p.Actor != nil && p.Actor.ID == s.actor.ID
	})).Return(&entities.StockMovement{ID: 9, Quantity: 5}, nil).Once()

	rec := s.do(http.MethodPost, "/api/ledger/stock/add", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 5, "reason": "scan", "action": "scan_add",
	})
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.True(s.decode(rec).Status)
}

func (s *RouterTestSuite) TestAddStock_UnknownActionRejectedByValidator() {
	rec := s.do(http.MethodPost, "/api/ledger/stock/add", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 5, "action": "teleport",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("movement_action", s.decode(rec).Details["action"])
}

func (s *RouterTestSuite) TestRemoveStock_InsufficientStockIsConflict() {
	s.ledger.On("RemoveStock", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewInsufficientStockError(1, 2, 0, 8, 3)).Once()

	rec := s.do(http.MethodPost, "/api/ledger/stock/remove", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 8, "reason": "sale",
	})
	s.Equal(http.StatusConflict, rec.Code)
	env := s.decode(rec)
	s.False(env.Status)
	s.Equal("insufficient_stock", env.Details["kind"])
	s.EqualValues(8, env.Details["requested"])
	s.EqualValues(3, env.Details["available"])
}

func (s *RouterTestSuite) TestRemoveStock_SaleOutIntoReservationIsConflict() {
	s.ledger.On("RemoveStock", mock.Anything, mock.MatchedBy(func(p services.RemoveStockParams) bool {
		return p.Action == constants.MovementSaleOut && !p.RespectReservations
	})).Return(nil, apperrors.NewInsufficientAvailableError(1, 2, 0, 8, 5)).Once()

	rec := s.do(http.MethodPost, "/api/ledger/stock/remove", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 8, "reason": "checkout", "action": "sale_out",
	})
	s.Equal(http.StatusConflict, rec.Code)
	env := s.decode(rec)
	s.Equal("insufficient_available", env.Details["kind"])
	s.EqualValues(5, env.Details["available"])
}

func (s *RouterTestSuite) TestRemoveStock_EngineOnlyActionRejected() {
	for _, action := range []string{"transfer_out", "transfer_in", "legacy_seed"} {
		rec := s.do(http.MethodPost, "/api/ledger/stock/remove", map[string]interface{}{
			"part_id": 1, "branch_id": 2, "quantity": 1, "reason": "fake", "action": action,
		})
		s.Equal(http.StatusBadRequest, rec.Code, action)
		s.Equal("movement_action", s.decode(rec).Details["action"], action)
	}
	rec := s.do(http.MethodPost, "/api/ledger/stock/add", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 1, "reason": "fake", "action": "transfer_in",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.ledger.AssertNotCalled(s.T(), "RemoveStock", mock.Anything, mock.Anything)
	s.ledger.AssertNotCalled(s.T(), "AddStock", mock.Anything, mock.Anything)
}

func (s *RouterTestSuite) TestRemoveStock_InvalidQuantityIsUnprocessable() {
	s.ledger.On("RemoveStock", mock.Anything, mock.Anything).
		Return(nil, &apperrors.LedgerError{Kind: apperrors.KindInvalidQuantity}).Once()

	rec := s.do(http.MethodPost, "/api/ledger/stock/remove", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "quantity": 0,
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *RouterTestSuite) TestGetStock_RequiresKey() {
	rec := s.do(http.MethodGet, "/api/ledger/stock?part_id=1", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/ledger/stock?part_id=x&branch_id=1", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestGetStock() {
	s.ledger.On("GetStock", mock.Anything, int64(1), int64(2)).
		Return(&services.StockView{PartID: 1, BranchID: 2, Quantity: 10, Reserved: 4, Available: 6}, nil).Once()

	rec := s.do(http.MethodGet, "/api/ledger/stock?part_id=1&branch_id=2", nil)
	s.Equal(http.StatusOK, rec.Code)

	var view services.StockView
	s.Require().NoError(json.Unmarshal(s.decode(rec).Body, &view))
	s.Equal(6, view.Available)
}

func (s *RouterTestSuite) TestGetAvailable_ExcludingTransfer() {
	s.availability.On("Available", mock.Anything, int64(1), int64(2), int64(7)).Return(3, nil).Once()

	rec := s.do(http.MethodGet, "/api/ledger/available?part_id=1&branch_id=2&excluding_transfer_id=7", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"available":3`)
}

func (s *RouterTestSuite) TestSyncAggregate_NothingToSync() {
	s.ledger.On("SyncAggregate", mock.Anything, int64(1), int64(2)).Return(nil, nil).Once()

	rec := s.do(http.MethodPost, "/api/ledger/stock/sync", map[string]interface{}{"part_id": 1, "branch_id": 2})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterTestSuite) TestSeed() {
	s.ledger.On("SeedFromAggregateIfUnlocated", mock.Anything, int64(1), int64(2)).Return(nil, nil).Once()
	rec := s.do(http.MethodPost, "/api/ledger/stock/seed", map[string]interface{}{"part_id": 1, "branch_id": 2})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("nothing to seed", s.decode(rec).Message)
}

func (s *RouterTestSuite) TestSetMinStockLevel_Negative() {
	rec := s.do(http.MethodPut, "/api/ledger/stock/min-level", map[string]interface{}{
		"part_id": 1, "branch_id": 2, "min_stock_level": -1,
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestListMovements_DefaultsToNewestFirst() {
	s.ledger.On("ListMovements", mock.Anything, mock.MatchedBy(func(f types.Filter) bool {
		return f.Sort["id"] == "desc" && f.WithPagination && f.Filter["branch_id"] == "2"
	})).Return([]entities.StockMovement{{ID: 3}}, uint64(1), nil).Once()

	rec := s.do(http.MethodGet, "/api/ledger/movements?filter[branch_id]=2", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"total_count":1`)
}

func (s *RouterTestSuite) TestListMovements_XLSX() {
	s.ledger.On("ListMovements", mock.Anything, mock.MatchedBy(func(f types.Filter) bool {
		return !f.WithPagination
	})).Return([]entities.StockMovement{{
		ID: 3, PartID: 1, BranchID: 2, Quantity: 4, Action: constants.MovementRemove,
		FromLocationID: null.Int64From(5), Reason: "sale", CreatedAt: time.Now(),
	}}, uint64(1), nil).Once()

	rec := s.do(http.MethodGet, "/api/ledger/movements?format=xlsx", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get(echo.HeaderContentType))
	s.Contains(rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	s.Require().NoError(err)
	defer f.Close()
	rows, err := f.GetRows("movements")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("ID", rows[0][0])
	s.Equal("remove", rows[1][4])
}

func (s *RouterTestSuite) TestListLowStock_AllBranches() {
	s.ledger.On("ListLowStock", mock.Anything, int64(0)).
		Return([]entities.LowStockItem{{PartID: 1, BranchID: 2, Quantity: 1, MinStockLevel: 5}}, nil).Once()

	rec := s.do(http.MethodGet, "/api/ledger/low-stock", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterTestSuite) TestCreateTransfer() {
	s.transfers.On("CreateTransfer", mock.Anything, mock.MatchedBy(func(p services.CreateTransferParams) bool {
		return p.PartID == 1 && p.Quantity == 4 && p.SourceBranchID == 2 && p.DestinationBranchID == 3 &&
			p.Reason == "restock" && p.Actor.ID == s.actor.ID
	})).Return(&entities.TransferRequest{ID: 20, Status: constants.TransferRequested}, nil).Once()

	rec := s.do(http.MethodPost, "/api/transfers", map[string]interface{}{
		"part_id": 1, "quantity": 4, "source_branch_id": 2, "destination_branch_id": 3, "reason": "restock",
	})
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *RouterTestSuite) TestApprove_IllegalTransition() {
	s.transfers.On("Approve", mock.Anything, int64(5), mock.AnythingOfType("*entities.Actor"), "go").
		Return(nil, apperrors.NewIllegalTransitionError(5, "received", "approved")).Once()

	rec := s.do(http.MethodPost, "/api/transfers/5/approve", map[string]interface{}{"reason": "go"})
	s.Equal(http.StatusConflict, rec.Code)
	env := s.decode(rec)
	s.Equal("received", env.Details["from_status"])
	s.Equal("approved", env.Details["to_status"])
}

func (s *RouterTestSuite) TestPickUp_PassesDriver() {
	s.transfers.On("MarkPickedUp", mock.Anything, int64(5), mock.Anything, "", int64(44)).
		Return(&entities.TransferRequest{ID: 5, Status: constants.TransferPickedUp}, nil).Once()

	rec := s.do(http.MethodPost, "/api/transfers/5/pickup", map[string]interface{}{"driver_id": 44})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterTestSuite) TestDeliver_Forbidden() {
	s.transfers.On("MarkDelivered", mock.Anything, int64(5), mock.Anything, "").
		Return(nil, &apperrors.LedgerError{Kind: apperrors.KindForbidden, Message: "only the driver"}).Once()

	rec := s.do(http.MethodPost, "/api/transfers/5/deliver", nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *RouterTestSuite) TestReceive_LockConflict() {
	s.transfers.On("ConfirmReceive", mock.Anything, int64(5), mock.Anything, "").
		Return(nil, &apperrors.LedgerError{Kind: apperrors.KindLockConflict}).Once()

	rec := s.do(http.MethodPost, "/api/transfers/5/receive", nil)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *RouterTestSuite) TestReject_MissingReason() {
	s.transfers.On("Reject", mock.Anything, int64(5), mock.Anything, "").
		Return(nil, &apperrors.LedgerError{Kind: apperrors.KindMissingReason}).Once()

	rec := s.do(http.MethodPost, "/api/transfers/5/reject", map[string]interface{}{})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *RouterTestSuite) TestFindTransfer_BadID() {
	rec := s.do(http.MethodGet, "/api/transfers/abc", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestFindTransfer_NotFound() {
	s.transfers.On("FindTransfer", mock.Anything, int64(404)).
		Return(nil, apperrors.NewNotFoundError("transfer", 404)).Once()

	rec := s.do(http.MethodGet, "/api/transfers/404", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestListTransfers_InternalErrorIsMasked() {
	s.transfers.On("ListTransfers", mock.Anything, mock.Anything).
		Return(nil, uint64(0), errors.New("pq: connection refused to 10.0.0.3")).Once()

	rec := s.do(http.MethodGet, "/api/transfers?filter[status]=approved", nil)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "10.0.0.3")
}

func (s *RouterTestSuite) TestCreateBranch_Validation() {
	rec := s.do(http.MethodPost, "/api/branches", map[string]interface{}{"name": "   ", "code": "bad code"})
	s.Equal(http.StatusBadRequest, rec.Code)
	details := s.decode(rec).Details
	s.Equal("notblank", details["name"])
	s.Equal("location_code", details["code"])
}

func (s *RouterTestSuite) TestCreateBranch() {
	s.locations.On("CreateBranch", mock.Anything, "Jeddah", "JED", mock.AnythingOfType("*entities.Actor")).
		Return(&entities.Branch{ID: 2, Name: "Jeddah", Code: "JED"}, nil).Once()

	rec := s.do(http.MethodPost, "/api/branches", map[string]interface{}{"name": "Jeddah", "code": "JED"})
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *RouterTestSuite) TestCreateLocation_NullNames() {
	s.locations.On("CreateLocation", mock.Anything, int64(2), "A1", null.StringFrom("Aisle"), null.String{}).
		Return(&entities.Location{ID: 8, BranchID: 2, Code: "A1"}, nil).Once()

	rec := s.do(http.MethodPost, "/api/branches/2/locations", map[string]interface{}{"code": "A1", "name_en": "Aisle"})
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *RouterTestSuite) TestListLocations() {
	s.locations.On("ListLocations", mock.Anything, int64(2)).
		Return([]entities.Location{{ID: 1, Code: constants.DefaultLocationCode, IsDefault: true}}, nil).Once()

	rec := s.do(http.MethodGet, "/api/branches/2/locations", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), constants.DefaultLocationCode))
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestBuildServices_AssemblesEveryService(t *testing.T) {
	// pgxpool.Pool is never dialled here; constructors only keep the pointer.
	svcs := BuildServices(nil, nil, nil, &config.Config{}, zaptest.NewLogger(t))
	require.NotNil(t, svcs.Ledger)
	require.NotNil(t, svcs.Availability)
	require.NotNil(t, svcs.Transfer)
	assert.NotNil(t, svcs.Location)
}
