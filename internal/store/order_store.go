package store

import (
	"context"
	"fmt"

	"order_payment/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderStore is the keyed order map. Callers enforce invariants before writing.
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Get returns ErrNotFound when no order has this id.
func (s *OrderStore) Get(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return model.Order{}, notFound(err)
	}
	return o, nil
}

// Upsert overwrites any existing row with the same order id.
func (s *OrderStore) Upsert(ctx context.Context, o *model.Order) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"payer_id", "payment_method", "amount", "received_amount",
				"is_completed", "refund_state", "created_at", "updated_at",
			}),
		}).
		Create(o).Error
}

// Create inserts a new order; a taken id yields ErrDuplicate.
func (s *OrderStore) Create(ctx context.Context, o *model.Order) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		if isUnique(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// TransitionRefund moves refund_state from -> to only if the row is still in from.
// It reports false when another call got there first. A move the refund state
// table forbids yields ErrIllegalTransition without touching the row.
func (s *OrderStore) TransitionRefund(ctx context.Context, orderID string, from, to model.RefundState) (bool, error) {
	if !model.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ? AND refund_state = ?", orderID, from).
		Update("refund_state", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
