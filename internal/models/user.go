package models

// User is the slice of the user directory this service depends on.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Username is the display name.
	Username string `json:"username" gorm:"column:username"`
	// WalletAddress is the on-chain recipient address for minted
	// collectibles. Empty if the user has not linked a wallet.
	WalletAddress string `json:"wallet_address" gorm:"column:wallet_address"`
	// Active indicates whether the user may collect.
	Active bool `json:"active" gorm:"column:active;default:true"`
	// CollectionCount is the aggregate number of verified collections.
	CollectionCount int64 `json:"collection_count" gorm:"column:collection_count;not null;default:0"`
	// CreatedAt is the Unix timestamp the user was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}
