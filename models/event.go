package models

import (
	"time"
)

// Event is a cached, aggregated listing discovered from an external source.
// Rows are updated in place on every re-scrape that matches the same natural
// key (url, or title+organization+date_start when the source has no url); the
// id never changes across updates.
type Event struct {
	ID              string     `json:"id" gorm:"primaryKey;size:191"`
	Title           string     `json:"title" gorm:"not null;size:255;index:idx_events_natural_key"`
	Organization    string     `json:"organization" gorm:"size:255;index:idx_events_natural_key"`
	Description     string     `json:"description" gorm:"type:text"`
	DateStart       *time.Time `json:"date_start" gorm:"index:idx_events_natural_key"`
	LocationAddress string     `json:"location_address" gorm:"size:500"`
	LocationCity    string     `json:"location_city" gorm:"size:100"`
	LocationState   string     `json:"location_state" gorm:"size:50"`
	LocationZip     string     `json:"location_zip" gorm:"size:20"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	GeohashCoarse   string     `json:"geohash_coarse" gorm:"size:12;index:idx_events_geohash_coarse"`
	GeohashFine     string     `json:"geohash_fine" gorm:"size:12;index"`
	Category        string     `json:"category" gorm:"size:100"`
	Venue           string     `json:"venue" gorm:"size:255"`
	Price           string     `json:"price" gorm:"size:100"`
	URL             string     `json:"url" gorm:"size:500;index:idx_events_url"`
	Source          string     `json:"source" gorm:"size:100"`
	Thumbnail       string     `json:"thumbnail" gorm:"size:500"`
	ScrapedAt       time.Time  `json:"scraped_at"`
	CacheExpiresAt  *time.Time `json:"cache_expires_at" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Images []EventImage `json:"images" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// EventImage is one image of an Event. Position is 0-based and defines the
// display order; the list is replaced wholesale when a re-scrape supplies a
// new one. Event.Thumbnail mirrors image[0] for fast access but the image
// rows are authoritative.
type EventImage struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	EventID  string `json:"event_id" gorm:"not null;size:191;index"`
	URL      string `json:"url" gorm:"not null;size:500"`
	Caption  string `json:"caption" gorm:"size:255"`
	Position int    `json:"position" gorm:"not null;default:0"`
}

// TableName overrides
func (Event) TableName() string {
	return "events"
}

func (EventImage) TableName() string {
	return "event_images"
}

// FreshAt reports whether the cached row is still usable at the given
// instant. A NULL cache_expires_at means the row never expires.
func (e *Event) FreshAt(now time.Time) bool {
	return e.CacheExpiresAt == nil || e.CacheExpiresAt.After(now)
}
