package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"goodturn-api/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindFreshByGeohash returns the cached events in a coarse bucket that are
// still fresh at the given instant. A NULL cache_expires_at never expires.
func (r *EventRepository) FindFreshByGeohash(geohashCoarse string, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("event_images.position ASC")
		}).
		Where("geohash_coarse = ?", geohashCoarse).
		Where("cache_expires_at IS NULL OR cache_expires_at > ?", now).
		Order("date_start ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	return events, nil
}

// SaveBatch reconciles a batch of normalized candidates with the store inside
// one transaction. Each candidate is matched by url first, then by the
// (title, organization, date_start) composite; a match is updated in place
// keeping its id, anything else is inserted. A failure rolls the whole batch
// back.
func (r *EventRepository) SaveBatch(events []*models.Event) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			if err := r.upsertOne(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting event batch: %w", err)
	}
	return nil
}

func (r *EventRepository) upsertOne(tx *gorm.DB, event *models.Event) error {
	existing, err := r.findMatch(tx, event)
	if err != nil {
		return err
	}

	if existing == nil {
		return tx.Create(event).Error
	}

	// Matched: mutate in place, never the id.
	event.ID = existing.ID
	event.CreatedAt = existing.CreatedAt

	updates := map[string]interface{}{
		"title":            event.Title,
		"organization":     event.Organization,
		"description":      event.Description,
		"date_start":       event.DateStart,
		"location_address": event.LocationAddress,
		"location_city":    event.LocationCity,
		"location_state":   event.LocationState,
		"location_zip":     event.LocationZip,
		"latitude":         event.Latitude,
		"longitude":        event.Longitude,
		"geohash_coarse":   event.GeohashCoarse,
		"geohash_fine":     event.GeohashFine,
		"category":         event.Category,
		"venue":            event.Venue,
		"price":            event.Price,
		"url":              event.URL,
		"source":           event.Source,
		"scraped_at":       event.ScrapedAt,
		"cache_expires_at": event.CacheExpiresAt,
		"updated_at":       time.Now(),
	}

	// A candidate that supplies images replaces the old list wholesale. One
	// that supplies none keeps the stored list and thumbnail.
	if len(event.Images) > 0 {
		updates["thumbnail"] = event.Thumbnail
	} else {
		event.Thumbnail = existing.Thumbnail
	}

	if err := tx.Model(&models.Event{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		return err
	}

	if len(event.Images) > 0 {
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.EventImage{}).Error; err != nil {
			return err
		}
		for i := range event.Images {
			event.Images[i].ID = 0
			event.Images[i].EventID = event.ID
			event.Images[i].Position = i
			if err := tx.Create(&event.Images[i]).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// findMatch resolves a candidate's natural key against the store: exact url
// match first, composite (title, organization, date_start) fallback second.
func (r *EventRepository) findMatch(tx *gorm.DB, event *models.Event) (*models.Event, error) {
	var existing models.Event

	if event.URL != "" {
		err := tx.Where("url = ?", event.URL).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if event.Title == "" || event.Organization == "" {
		return nil, nil
	}
	query := tx.Where("title = ? AND organization = ?", event.Title, event.Organization)
	if event.DateStart != nil {
		query = query.Where("date_start = ?", event.DateStart)
	} else {
		query = query.Where("date_start IS NULL")
	}
	err := query.First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// DeleteExpiredBefore hard-deletes rows whose cache expiry passed before the
// cutoff, along with their images. Housekeeping only; the cache core itself
// never deletes.
func (r *EventRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	var expired []models.Event
	if err := r.db.Select("id").
		Where("cache_expires_at IS NOT NULL AND cache_expires_at < ?", cutoff).
		Find(&expired).Error; err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, len(expired))
	for i, e := range expired {
		ids[i] = e.ID
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id IN ?", ids).Delete(&models.EventImage{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Event{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}
