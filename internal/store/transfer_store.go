package store

import (
	"context"
	"time"

	"order_payment/internal/model"

	"gorm.io/gorm"
)

type TransferStore struct {
	db *gorm.DB
}

func NewTransferStore(db *gorm.DB) *TransferStore {
	return &TransferStore{db: db}
}

func (s *TransferStore) Create(ctx context.Context, t *model.Transfer) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if isUnique(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *TransferStore) Get(ctx context.Context, transferID string) (model.Transfer, error) {
	var t model.Transfer
	if err := s.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&t).Error; err != nil {
		return model.Transfer{}, notFound(err)
	}
	return t, nil
}

// Claim flips pending -> submitted. Only one executor wins.
func (s *TransferStore) Claim(ctx context.Context, transferID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Transfer{}).
		Where("transfer_id = ? AND status = ?", transferID, model.TransferPending).
		Update("status", model.TransferSubmitted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release hands a submitted transfer back to pending. It reports false if the
// row left submitted meanwhile.
func (s *TransferStore) Release(ctx context.Context, transferID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Transfer{}).
		Where("transfer_id = ? AND status = ?", transferID, model.TransferSubmitted).
		Update("status", model.TransferPending)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Settle records the ledger outcome once. It reports false if the row was
// already settled.
func (s *TransferStore) Settle(ctx context.Context, transferID string, status model.TransferStatus, errMsg string, at time.Time) (bool, error) {
	if len(errMsg) > 255 {
		errMsg = errMsg[:255]
	}
	res := s.db.WithContext(ctx).Model(&model.Transfer{}).
		Where("transfer_id = ? AND status IN ?", transferID,
			[]model.TransferStatus{model.TransferPending, model.TransferSubmitted}).
		Updates(map[string]any{
			"status":      status,
			"error_msg":   errMsg,
			"resolved_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPending returns transfers still pending that were created before the cutoff.
func (s *TransferStore) ListPending(ctx context.Context, before time.Time, limit int) ([]model.Transfer, error) {
	var out []model.Transfer
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TransferPending, before).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListSubmitted returns transfers claimed before the cutoff that never settled.
// Claim bumps updated_at, so it marks the submission time.
func (s *TransferStore) ListSubmitted(ctx context.Context, before time.Time, limit int) ([]model.Transfer, error) {
	var out []model.Transfer
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.TransferSubmitted, before).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}
