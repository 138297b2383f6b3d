package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/utils"
	"gorm.io/gorm"
)

const ownerDocumentsCacheTTL = 10 * time.Minute

// DocumentStore is the MySQL-backed document repository.
// Writes are single statements and never retried here.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func ownerDocumentsCacheKey(businessId, ownerKey string) string {
	return fmt.Sprintf("OwnerDocuments:%s:%s", businessId, ownerKey)
}

func (s *DocumentStore) invalidate(ctx context.Context, businessId, ownerKey string) {
	if err := config.RemoveRedisKey(ctx, ownerDocumentsCacheKey(businessId, ownerKey)); err != nil {
		config.LogError(config.GetLogger(), "DocumentStore", "invalidate", "remove owner documents cache", ownerKey, err)
	}
}

func (s *DocumentStore) Create(ctx context.Context, rec *DocumentRecord) (*DocumentRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if rec.OwnerKey == "" {
		return nil, errors.New("owner key is required")
	}

	created := *rec
	created.ID = uuid.NewString()
	created.BusinessId = businessId
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, businessId, created.OwnerKey)
	return &created, nil
}

// Update writes only the patched columns.
func (s *DocumentStore) Update(ctx context.Context, ownerKey string, patch *DocumentPatch) error {
	if patch.Empty() {
		return nil
	}
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	err := s.db.WithContext(ctx).
		Model(&DocumentRecord{}).
		Where("id = ? AND owner_key = ?", patch.ID, ownerKey).
		Updates(patch.Columns).Error
	if err != nil {
		return err
	}
	s.invalidate(ctx, businessId, ownerKey)
	return nil
}

// Delete removes the row. Deleting a row that is already gone is not an error.
func (s *DocumentStore) Delete(ctx context.Context, ownerKey string, id string) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_key = ?", id, ownerKey).
		Delete(&DocumentRecord{}).Error
	if err != nil {
		return err
	}
	s.invalidate(ctx, businessId, ownerKey)
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	var result DocumentRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ListByOwner returns the owner's rows ordered by creation, cached in redis.
func (s *DocumentStore) ListByOwner(ctx context.Context, ownerKey string) ([]*DocumentRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cacheKey := ownerDocumentsCacheKey(businessId, ownerKey)
	var cached []*DocumentRecord
	if exists, err := config.GetRedisObject(ctx, cacheKey, &cached); err == nil && exists {
		return cached, nil
	}

	var results []*DocumentRecord
	err := s.db.WithContext(ctx).
		Where("owner_key = ?", ownerKey).
		Order("created_at, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, cacheKey, results, ownerDocumentsCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "DocumentStore", "ListByOwner", "cache owner documents", ownerKey, err)
	}
	return results, nil
}

// ListByOwners is the batch read behind the owners listing loader.
func (s *DocumentStore) ListByOwners(ctx context.Context, ownerKeys []string) ([]*DocumentRecord, error) {
	var results []*DocumentRecord
	if len(ownerKeys) == 0 {
		return results, nil
	}
	err := s.db.WithContext(ctx).
		Where("owner_key IN ?", utils.UniqueSlice(ownerKeys)).
		Order("created_at, id").
		Find(&results).Error
	return results, err
}

// ListExpiringDocuments returns rows whose expiry date falls on or before today+days, soonest first.
// Already expired rows are included.
func ListExpiringDocuments(ctx context.Context, db *gorm.DB, days int, today time.Time) ([]*DocumentRecord, error) {
	if days < 0 {
		return nil, errors.New("days must not be negative")
	}
	until := today.AddDate(0, 0, days).Format(DateLayout)

	var results []*DocumentRecord
	err := db.WithContext(ctx).
		Where("expiry_date <> '' AND expiry_date <= ?", until).
		Order("expiry_date, owner_key, name").
		Find(&results).Error
	return results, err
}
