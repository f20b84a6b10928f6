package models

// Location is a collectible point-of-interest.
type Location struct {
	// ID is the unique identifier of the location.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Name is the display name of the location.
	Name string `json:"name" gorm:"column:name;not null"`
	// Latitude is the latitude of the location in degrees.
	Latitude float64 `json:"latitude" gorm:"column:latitude;not null"`
	// Longitude is the longitude of the location in degrees.
	Longitude float64 `json:"longitude" gorm:"column:longitude;not null"`
	// CollectRadius is the maximum distance in meters from which the
	// location can be collected.
	CollectRadius float64 `json:"collect_radius" gorm:"column:collect_radius;not null"`
	// Points is the number of points earned for collecting the location.
	Points int64 `json:"points" gorm:"column:points;not null"`
	// Rarity is the rarity tier (COMMON, RARE, EPIC, LEGENDARY).
	Rarity string `json:"rarity" gorm:"column:rarity;index"`
	// Category is the location category (LANDMARK, NATURE, ART, etc.)
	Category string `json:"category" gorm:"column:category;index"`
	// Region is the geographic region the location belongs to.
	Region string `json:"region" gorm:"column:region;index"`
	// MetadataURI points to the collectible metadata used when minting.
	MetadataURI string `json:"metadata_uri" gorm:"column:metadata_uri"`
	// Active indicates whether the location is currently collectible.
	Active bool `json:"active" gorm:"column:active;default:true"`
	// EventStartAt and EventEndAt bound a time-boxed seasonal event as Unix
	// timestamps. Both zero means the location is not time-boxed.
	EventStartAt int64 `json:"event_start_at" gorm:"column:event_start_at"`
	EventEndAt   int64 `json:"event_end_at" gorm:"column:event_end_at"`
}

// IsEvent reports whether the location is a time-boxed seasonal event.
func (l *Location) IsEvent() bool {
	return l.EventStartAt != 0 || l.EventEndAt != 0
}
