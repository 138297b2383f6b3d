package config

import (
	"os"
	"strings"
	"time"
)

const defaultAuditTimezone = "Europe/London"

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AuditPubSubEnabled fans every written audit entry out on PUBSUB_TOPIC_AUDIT.
//
// Set via env:
// - AUDIT_PUBSUB_ENABLED=true
func AuditPubSubEnabled() bool {
	return envBool("AUDIT_PUBSUB_ENABLED")
}

// AttachmentThumbnailsEnabled stores a 200px JPEG preview next to image attachments.
//
// Set via env:
// - ATTACHMENT_THUMBNAILS_ENABLED=true
func AttachmentThumbnailsEnabled() bool {
	return envBool("ATTACHMENT_THUMBNAILS_ENABLED")
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// AuditTimezone is the single regional convention all audit timestamps are rendered in,
// regardless of who is viewing them. Override with AUDIT_TIMEZONE.
func AuditTimezone() *time.Location {
	name := strings.TrimSpace(os.Getenv("AUDIT_TIMEZONE"))
	if name == "" {
		name = defaultAuditTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc, err = time.LoadLocation(defaultAuditTimezone)
		if err != nil {
			return time.UTC
		}
	}
	return loc
}
