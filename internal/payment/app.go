// Package payment settles e-commerce orders on a ledger: native and fungible-asset
// intake, and the owner-initiated refund saga with its single-shot continuation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"order_payment/internal/model"
	"order_payment/internal/store"

	"gorm.io/gorm"
)

// Call is what the host attests about the current invocation.
type Call struct {
	Predecessor     string // immediate caller
	Signer          string // account that signed the transaction
	AttachedDeposit model.Amount
}

func (c Call) payer() string {
	if c.Signer != "" {
		return c.Signer
	}
	return c.Predecessor
}

// Dispatcher hands a journaled transfer to whatever executes it.
// It must not block on the ledger.
type Dispatcher interface {
	Dispatch(ctx context.Context, t model.Transfer) error
}

// Locker serializes calls touching the same order across replicas.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TransferCache mirrors journal rows for fast status reads. Best effort.
type TransferCache interface {
	Put(ctx context.Context, t model.Transfer) error
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// App is the application state every entry point runs against: the identities
// fixed at initialization plus the order map behind db.
type App struct {
	db         *gorm.DB
	state      model.ContractState
	dispatcher Dispatcher
	locker     Locker
	cache      TransferCache
	log        *slog.Logger
	now        func() time.Time
}

type Option func(*App)

func WithLocker(l Locker) Option { return func(a *App) { a.locker = l } }

func WithTransferCache(c TransferCache) Option { return func(a *App) { a.cache = c } }

func WithLogger(l *slog.Logger) Option { return func(a *App) { a.log = l } }

func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

// Initialize records the owner and the fungible-asset collaborator. Once only.
func Initialize(ctx context.Context, db *gorm.DB, ownerID, fungibleContractID string) (model.ContractState, error) {
	ownerID = strings.TrimSpace(ownerID)
	fungibleContractID = strings.TrimSpace(fungibleContractID)
	if ownerID == "" || fungibleContractID == "" {
		return model.ContractState{}, fmt.Errorf("%w: owner_id and fungible_asset_contract_id are required", ErrInvalidArgument)
	}
	st := model.ContractState{OwnerID: ownerID, FungibleContractID: fungibleContractID}
	if err := store.NewStateStore(db).Init(ctx, &st); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.ContractState{}, ErrAlreadyInitialized
		}
		return model.ContractState{}, err
	}
	return st, nil
}

// Load builds the App from the persisted state.
func Load(ctx context.Context, db *gorm.DB, dispatcher Dispatcher, opts ...Option) (*App, error) {
	st, err := store.NewStateStore(db).Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	a := &App{
		db:         db,
		state:      st,
		dispatcher: dispatcher,
		locker:     noopLocker{},
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *App) State() model.ContractState { return a.state }

// GetOrder is read-only.
func (a *App) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	o, err := store.NewOrderStore(a.db).Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Order{}, ErrNotFound
		}
		return model.Order{}, err
	}
	return o, nil
}

func (a *App) GetTransfer(ctx context.Context, transferID string) (model.Transfer, error) {
	t, err := store.NewTransferStore(a.db).Get(ctx, transferID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Transfer{}, ErrTransferNotFound
		}
		return model.Transfer{}, err
	}
	return t, nil
}

func (a *App) lock(ctx context.Context, orderID string) (func(), error) {
	unlock, err := a.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return unlock, nil
}

// dispatch runs after the journal row is committed; a failure leaves the row
// pending for the sweeper.
func (a *App) dispatch(ctx context.Context, t model.Transfer) bool {
	a.cacheTransfer(ctx, t)
	if err := a.dispatcher.Dispatch(ctx, t); err != nil {
		a.log.Error("dispatch transfer", "transfer_id", t.TransferID, "order_id", t.OrderID, "kind", t.Kind, "err", err)
		return false
	}
	return true
}

func (a *App) cacheTransfer(ctx context.Context, t model.Transfer) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(ctx, t); err != nil {
		a.log.Warn("cache transfer state", "transfer_id", t.TransferID, "err", err)
	}
}
