package model

import (
	"time"
)

// ContractState holds the identities fixed at initialization. Single row.
type ContractState struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	OwnerID            string `gorm:"size:128;not null" json:"owner_id"`
	FungibleContractID string `gorm:"size:128;not null" json:"fungible_asset_contract_id"`
}

func (ContractState) TableName() string { return "contract_state" }

// Tables lists every model the service migrates.
func Tables() []any {
	return []any{&ContractState{}, &Order{}, &Transfer{}}
}
