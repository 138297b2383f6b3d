package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	OwnerTypeEmployee     = "employee"
	OwnerTypeAsset        = "asset"
	OwnerTypeCustomerSite = "customer_site"
	OwnerTypeCompliance   = "compliance"
	OwnerTypeVehicle      = "vehicle"
)

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// DocumentOwner is the parent entity (employee, site, vehicle...) whose DocumentPack
// lists the ids of its document rows. Owner keys are unique per business only.
type DocumentOwner struct {
	BusinessId   string     `gorm:"size:64;primaryKey;autoIncrement:false" json:"business_id"`
	ID           string     `gorm:"size:64;primaryKey;autoIncrement:false" json:"id"`
	OwnerType    string     `gorm:"size:40;index;not null" json:"owner_type"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	ContactPhone string     `gorm:"size:32" json:"contact_phone"`
	ContactEmail string     `gorm:"size:255" json:"contact_email"`
	DocumentPack StringList `gorm:"type:json" json:"document_pack"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// OwnerHeader is the owner part of an edit form.
type OwnerHeader struct {
	OwnerKey     string `json:"ownerKey" validate:"required,max=64"`
	OwnerType    string `json:"ownerType" validate:"required,oneof=employee asset customer_site compliance vehicle"`
	Name         string `json:"name" validate:"required,max=255"`
	ContactPhone string `json:"contactPhone" validate:"omitempty,phone"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email"`
}

// PackChange is the net effect of one save on an owner's pack.
type PackChange struct {
	Added   []string
	Removed []string
}

func (c PackChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// ApplyTo returns pack minus Removed plus Added, preserving order and skipping duplicates.
func (c PackChange) ApplyTo(pack []string) StringList {
	removed := make(map[string]bool, len(c.Removed))
	for _, id := range c.Removed {
		removed[id] = true
	}
	result := StringList{}
	seen := map[string]bool{}
	for _, id := range pack {
		if removed[id] || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	for _, id := range c.Added {
		if removed[id] || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// OwnerStore persists owners and their document packs.
type OwnerStore struct {
	db *gorm.DB
}

func NewOwnerStore(db *gorm.DB) *OwnerStore {
	return &OwnerStore{db: db}
}

func normalizeOwnerHeader(h *OwnerHeader) error {
	h.Name = strings.TrimSpace(h.Name)
	h.ContactEmail = strings.TrimSpace(h.ContactEmail)
	if err := utils.ValidateStruct(h); err != nil {
		return err
	}
	if h.ContactPhone != "" {
		formatted, err := utils.FormatPhoneNumber(h.ContactPhone, utils.CountryCode)
		if err != nil {
			return err
		}
		h.ContactPhone = formatted
	}
	return nil
}

// SaveOwner creates or updates the owner header; the pack is left untouched.
func (s *OwnerStore) SaveOwner(ctx context.Context, header OwnerHeader) (*DocumentOwner, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := normalizeOwnerHeader(&header); err != nil {
		return nil, err
	}

	owner := DocumentOwner{
		ID:           header.OwnerKey,
		BusinessId:   businessId,
		OwnerType:    header.OwnerType,
		Name:         header.Name,
		ContactPhone: header.ContactPhone,
		ContactEmail: header.ContactEmail,
		DocumentPack: StringList{},
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_type", "name", "contact_phone", "contact_email", "updated_at"}),
	}).Create(&owner).Error
	if err != nil {
		return nil, err
	}
	return s.GetOwner(ctx, header.OwnerKey)
}

func (s *OwnerStore) GetOwner(ctx context.Context, ownerKey string) (*DocumentOwner, error) {
	var owner DocumentOwner
	if err := s.db.WithContext(ctx).Where("id = ?", ownerKey).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &owner, nil
}

func (s *OwnerStore) ListOwners(ctx context.Context, ownerType string) ([]*DocumentOwner, error) {
	var owners []*DocumentOwner
	dbCtx := s.db.WithContext(ctx)
	if ownerType != "" {
		dbCtx = dbCtx.Where("owner_type = ?", ownerType)
	}
	err := dbCtx.Order("name, id").Find(&owners).Error
	return owners, err
}

// SavePack applies change to the stored pack in one read-modify-write.
// The owner row is created from header when it does not exist yet.
func (s *OwnerStore) SavePack(ctx context.Context, header OwnerHeader, change PackChange) (StringList, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if config.GetRedisLock() != nil {
		release, err := utils.OwnerLock(ctx, businessId, header.OwnerKey, "OwnerStore", "SavePack")
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var pack StringList
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner DocumentOwner
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, header.OwnerKey).First(&owner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := normalizeOwnerHeader(&header); err != nil {
				return err
			}
			pack = change.ApplyTo(nil)
			return tx.Create(&DocumentOwner{
				ID:           header.OwnerKey,
				BusinessId:   businessId,
				OwnerType:    header.OwnerType,
				Name:         header.Name,
				ContactPhone: header.ContactPhone,
				ContactEmail: header.ContactEmail,
				DocumentPack: pack,
			}).Error
		}
		if err != nil {
			return err
		}
		pack = change.ApplyTo(owner.DocumentPack)
		return tx.Model(&owner).Update("document_pack", pack).Error
	})
	if err != nil {
		return nil, err
	}
	return pack, nil
}
