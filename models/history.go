package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fleet_backend/utils"
	"gorm.io/gorm"
)

const (
	HistoryActionCreate           = "CREATE"
	HistoryActionUpdate           = "UPDATE"
	HistoryActionDelete           = "DELETE"
	HistoryActionUpdateAttachment = "UPDATE_ATTACHMENT"
)

// History is one append-only audit entry. Details holds the concatenated human readable lines.
type History struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	EntityType string    `gorm:"size:40;index:idx_history_entity;not null" json:"entity_type"`
	EntityId   string    `gorm:"size:64;index:idx_history_entity;not null" json:"entity_id"`
	Action     string    `gorm:"size:20;not null" json:"action"`
	Details    string    `gorm:"type:text;not null" json:"details"`
	UserName   string    `gorm:"size:100" json:"user_name"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (h History) GetId() string {
	return h.ID
}

func (h History) GetCursor() string {
	return h.CreatedAt.UTC().Format(time.RFC3339Nano)
}

type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

type HistoriesEdge Edge[History]

// HistoryLog appends audit entries. It never updates or deletes them.
type HistoryLog struct {
	db *gorm.DB
}

func NewHistoryLog(db *gorm.DB) *HistoryLog {
	return &HistoryLog{db: db}
}

// Append stores entry as given; CreatedAt is the audit moment chosen by the caller.
func (l *HistoryLog) Append(ctx context.Context, entry *History) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.BusinessId = businessId
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return l.db.WithContext(ctx).Create(entry).Error
}

type HistoryFilter struct {
	EntityType string
	EntityId   string
	Action     string
	From       *time.Time
	To         *time.Time
}

func (f HistoryFilter) apply(dbCtx *gorm.DB) *gorm.DB {
	if f.EntityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityId != "" {
		dbCtx = dbCtx.Where("entity_id = ?", f.EntityId)
	}
	if f.Action != "" {
		dbCtx = dbCtx.Where("action = ?", f.Action)
	}
	if f.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		dbCtx = dbCtx.Where("created_at <= ?", *f.To)
	}
	return dbCtx
}

// GetHistories returns every matching entry, newest first. Used by the export.
func (l *HistoryLog) GetHistories(ctx context.Context, filter HistoryFilter) ([]*History, error) {
	var results []*History
	err := filter.apply(l.db.WithContext(ctx)).Order("created_at DESC, id DESC").Find(&results).Error
	return results, err
}

func (l *HistoryLog) PaginateHistory(ctx context.Context, limit int, after *string, filter HistoryFilter) (*HistoriesConnection, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	dbCtx := filter.apply(l.db.WithContext(ctx))

	edges, pageInfo, err := FetchPageCompositeCursor[History](dbCtx, limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	conn := HistoriesConnection{PageInfo: pageInfo, Edges: make([]*HistoriesEdge, 0, len(edges))}
	for _, edge := range edges {
		historyEdge := HistoriesEdge(edge)
		conn.Edges = append(conn.Edges, &historyEdge)
	}
	return &conn, nil
}
