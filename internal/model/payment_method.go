package model

// PaymentMethod is the rail an order was settled on.
type PaymentMethod string

const (
	NativeAsset   PaymentMethod = "NativeAsset"   // platform currency, direct transfer
	FungibleAsset PaymentMethod = "FungibleAsset" // token held by the collaborator contract
)

func (m PaymentMethod) Valid() bool {
	return m == NativeAsset || m == FungibleAsset
}
