package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Cursor interface {
	GetCursor() string
}

type Identifier interface {
	GetId() string
}

type CompositeCursor interface {
	Cursor
	Identifier
}

type Edge[N Cursor] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

// FetchPageCompositeCursor pages on (cursorColumn, id). Cursor values that parse as
// RFC3339 timestamps are compared as times.
func FetchPageCompositeCursor[T CompositeCursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) ([]Edge[T], *PageInfo, error) {
	nodes := make([]*T, 0)

	switch cmpOperator {
	case ">":
		dbCtx = dbCtx.Order(cursorColumn + ", id")
	case "<":
		dbCtx = dbCtx.Order(cursorColumn + " DESC, id DESC")
	default:
		return nil, nil, fmt.Errorf("unsupported cursor operator %q", cmpOperator)
	}

	if value, id := DecodeCompositeCursor(after); value != "" {
		var cursorValue any = value
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			cursorValue = t
		}
		dbCtx = dbCtx.Where(
			// [1] = column, [2] = operator
			fmt.Sprintf("(%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?))", cursorColumn, cmpOperator),
			cursorValue, cursorValue, id)
	}

	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, nil, err
	}

	hasNextPage := len(nodes) > limit
	if hasNextPage {
		nodes = nodes[:limit]
	}
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, Edge[T]{
			Node:   node,
			Cursor: EncodeCompositeCursor((*node).GetCursor(), (*node).GetId()),
		})
	}

	pageInfo := PageInfo{HasNextPage: &hasNextPage}
	if len(edges) > 0 {
		pageInfo.StartCursor = edges[0].Cursor
		pageInfo.EndCursor = edges[len(edges)-1].Cursor
	}
	return edges, &pageInfo, nil
}
