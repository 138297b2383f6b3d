package models

import (
	"encoding/base64"
	"strings"
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

// DecodeCompositeCursor splits "<value>|<id>"; a malformed cursor reads as the first page.
func DecodeCompositeCursor(cursor *string) (string, string) {
	if cursor == nil || *cursor == "" {
		return "", ""
	}
	decoded, err := base64.URLEncoding.DecodeString(*cursor)
	if err != nil {
		return "", ""
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

func EncodeCompositeCursor(value string, id string) string {
	return base64.URLEncoding.EncodeToString([]byte(value + "|" + id))
}
