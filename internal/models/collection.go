package models

// MintStatus is the state of the asynchronous on-chain mint for a
// collection record.
type MintStatus string

const (
	MintStatusPending    MintStatus = "PENDING"
	MintStatusMinting    MintStatus = "MINTING"
	MintStatusConfirming MintStatus = "CONFIRMING"
	MintStatusMinted     MintStatus = "MINTED"
	MintStatusFailed     MintStatus = "FAILED"
)

// CollectionAttempt is a single user-submitted claim of presence at a
// location. It is input only and is never persisted as-is.
type CollectionAttempt struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Accuracy is the reported GPS accuracy in meters. Zero means unknown.
	Accuracy float64 `json:"accuracy"`
	// MockLocation is the client-reported mock location provider flag.
	MockLocation bool `json:"mock_location"`
	// DeviceID identifies the device the attempt was made from.
	DeviceID string `json:"device_id"`
}

// CollectionRecord is the durable record of a verified collection.
// At most one record exists per (user, location) pair, ever. The record is
// immutable after creation except for the mint fields, which are owned by
// the mint coordinator.
type CollectionRecord struct {
	// ID is the unique identifier of the record.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// UserID and LocationID identify the collection; unique together.
	UserID     string `json:"user_id" gorm:"column:user_id;uniqueIndex:ux_user_location,priority:1;not null"`
	LocationID string `json:"location_id" gorm:"column:location_id;uniqueIndex:ux_user_location,priority:2;not null"`
	// Latitude and Longitude are the coordinates the collection was
	// verified at.
	Latitude  float64 `json:"latitude" gorm:"column:latitude"`
	Longitude float64 `json:"longitude" gorm:"column:longitude"`
	// DeviceID is the device the verified attempt came from.
	DeviceID string `json:"device_id" gorm:"column:device_id"`
	// VerificationMethod tags how the attempt was verified (e.g. GPS).
	VerificationMethod string `json:"verification_method" gorm:"column:verification_method"`
	// EarnedPoints is the number of points credited for this collection.
	EarnedPoints int64 `json:"earned_points" gorm:"column:earned_points"`
	// MintStatus is the state of the asynchronous mint.
	MintStatus MintStatus `json:"mint_status" gorm:"column:mint_status;index;not null"`
	// TokenID is the minted token identifier. Empty until minted.
	TokenID string `json:"token_id" gorm:"column:token_id"`
	// TxHash is the hash of the submitted mint transaction.
	TxHash string `json:"tx_hash" gorm:"column:tx_hash"`
	// MintUpdatedAt is the Unix timestamp of the last mint state change.
	MintUpdatedAt int64 `json:"mint_updated_at" gorm:"column:mint_updated_at;index"`
	// CollectedAt is the Unix timestamp the collection was verified.
	CollectedAt int64 `json:"collected_at" gorm:"column:collected_at;index"`
}
