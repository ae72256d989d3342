package routes

import (
	"context"
	"errors"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/types"
)

type ledgerServiceMock struct{ mock.Mock }

func (m *ledgerServiceMock) AddStock(ctx context.Context, p services.AddStockParams) (*entities.StockMovement, error) {
	args := m.Called(ctx, p)
	mv, _ := args.Get(0).(*entities.StockMovement)
	return mv, args.Error(1)
}

func (m *ledgerServiceMock) RemoveStock(ctx context.Context, p services.RemoveStockParams) ([]entities.StockMovement, error) {
	args := m.Called(ctx, p)
	mvs, _ := args.Get(0).([]entities.StockMovement)
	return mvs, args.Error(1)
}

func (m *ledgerServiceMock) MoveStock(ctx context.Context, p services.MoveStockParams) (*entities.StockMovement, error) {
	args := m.Called(ctx, p)
	mv, _ := args.Get(0).(*entities.StockMovement)
	return mv, args.Error(1)
}

func (m *ledgerServiceMock) SyncAggregate(ctx context.Context, partID, branchID int64) (*entities.Stock, error) {
	args := m.Called(ctx, partID, branchID)
	s, _ := args.Get(0).(*entities.Stock)
	return s, args.Error(1)
}

func (m *ledgerServiceMock) SeedFromAggregateIfUnlocated(ctx context.Context, partID, branchID int64) (*entities.StockMovement, error) {
	args := m.Called(ctx, partID, branchID)
	mv, _ := args.Get(0).(*entities.StockMovement)
	return mv, args.Error(1)
}

func (m *ledgerServiceMock) AddStockInTx(context.Context, pgx.Tx, services.AddStockParams) (*entities.StockMovement, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *ledgerServiceMock) RemoveStockInTx(context.Context, pgx.Tx, services.RemoveStockParams) ([]entities.StockMovement, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *ledgerServiceMock) LockLocations(context.Context, pgx.Tx, int64, int64) ([]entities.StockLocation, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *ledgerServiceMock) GetStock(ctx context.Context, partID, branchID int64) (*services.StockView, error) {
	args := m.Called(ctx, partID, branchID)
	v, _ := args.Get(0).(*services.StockView)
	return v, args.Error(1)
}

func (m *ledgerServiceMock) SetMinStockLevel(ctx context.Context, partID, branchID int64, level int) error {
	return m.Called(ctx, partID, branchID, level).Error(0)
}

func (m *ledgerServiceMock) ListMovements(ctx context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]entities.StockMovement)
	return list, args.Get(1).(uint64), args.Error(2)
}

func (m *ledgerServiceMock) ListLowStock(ctx context.Context, branchID int64) ([]entities.LowStockItem, error) {
	args := m.Called(ctx, branchID)
	items, _ := args.Get(0).([]entities.LowStockItem)
	return items, args.Error(1)
}

type availabilityServiceMock struct{ mock.Mock }

func (m *availabilityServiceMock) ReservedQuantity(context.Context, pgx.Tx, int64, int64, int64) (int, error) {
	return 0, errors.New("not used over HTTP")
}

func (m *availabilityServiceMock) AvailableFor(context.Context, pgx.Tx, *entities.Stock, int64) (int, error) {
	return 0, errors.New("not used over HTTP")
}

func (m *availabilityServiceMock) Available(ctx context.Context, partID, branchID, excludingTransferID int64) (int, error) {
	args := m.Called(ctx, partID, branchID, excludingTransferID)
	return args.Int(0), args.Error(1)
}

type transferServiceMock struct{ mock.Mock }

func (m *transferServiceMock) result(args mock.Arguments) (*entities.TransferRequest, error) {
	t, _ := args.Get(0).(*entities.TransferRequest)
	return t, args.Error(1)
}

func (m *transferServiceMock) CreateTransfer(ctx context.Context, p services.CreateTransferParams) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, p))
}

func (m *transferServiceMock) Approve(ctx context.Context, id int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id, actor, reason))
}

func (m *transferServiceMock) Reject(ctx context.Context, id int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id, actor, reason))
}

func (m *transferServiceMock) MarkPickedUp(ctx context.Context, id int64, actor *entities.Actor, reason string, driverID int64) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id, actor, reason, driverID))
}

func (m *transferServiceMock) MarkDelivered(ctx context.Context, id int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id, actor, reason))
}

func (m *transferServiceMock) ConfirmReceive(ctx context.Context, id int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id, actor, reason))
}

func (m *transferServiceMock) FindTransfer(ctx context.Context, id int64) (*entities.TransferRequest, error) {
	return m.result(m.Called(ctx, id))
}

func (m *transferServiceMock) ListTransfers(ctx context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]entities.TransferRequest)
	return list, args.Get(1).(uint64), args.Error(2)
}

type locationServiceMock struct{ mock.Mock }

func (m *locationServiceMock) FindBranch(context.Context, pgx.Tx, int64) (*entities.Branch, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *locationServiceMock) DefaultLocation(context.Context, pgx.Tx, int64) (*entities.Location, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *locationServiceMock) ValidateLocationBranch(context.Context, pgx.Tx, int64, int64) (*entities.Location, error) {
	return nil, errors.New("not used over HTTP")
}

func (m *locationServiceMock) CreateBranch(ctx context.Context, name, code string, actor *entities.Actor) (*entities.Branch, error) {
	args := m.Called(ctx, name, code, actor)
	b, _ := args.Get(0).(*entities.Branch)
	return b, args.Error(1)
}

func (m *locationServiceMock) ListBranches(ctx context.Context) ([]entities.Branch, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]entities.Branch)
	return list, args.Error(1)
}

func (m *locationServiceMock) CreateLocation(ctx context.Context, branchID int64, code string, nameEn, nameAr null.String) (*entities.Location, error) {
	args := m.Called(ctx, branchID, code, nameEn, nameAr)
	l, _ := args.Get(0).(*entities.Location)
	return l, args.Error(1)
}

func (m *locationServiceMock) ListLocations(ctx context.Context, branchID int64) ([]entities.Location, error) {
	args := m.Called(ctx, branchID)
	list, _ := args.Get(0).([]entities.Location)
	return list, args.Error(1)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

var (
	_ services.LedgerServiceInterface       = (*ledgerServiceMock)(nil)
	_ services.AvailabilityServiceInterface = (*availabilityServiceMock)(nil)
	_ services.TransferServiceInterface     = (*transferServiceMock)(nil)
	_ services.LocationServiceInterface     = (*locationServiceMock)(nil)
)
