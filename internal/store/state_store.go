package store

import (
	"context"

	"order_payment/internal/model"

	"gorm.io/gorm"
)

const stateRowID = 1

type StateStore struct {
	db *gorm.DB
}

func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Get(ctx context.Context) (model.ContractState, error) {
	var st model.ContractState
	if err := s.db.WithContext(ctx).First(&st, stateRowID).Error; err != nil {
		return model.ContractState{}, notFound(err)
	}
	return st, nil
}

// Init writes the singleton row; a second call yields ErrDuplicate.
func (s *StateStore) Init(ctx context.Context, st *model.ContractState) error {
	st.ID = stateRowID
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		if isUnique(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
