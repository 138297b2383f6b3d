package workflow

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/fleet_backend/appctx"
)

// AuditTimeLayout matches the en-GB locale string the existing history rows were written with.
const AuditTimeLayout = "02/01/2006, 15:04:05"

// AuditStamp is the single actor and moment shared by every line of one save.
type AuditStamp struct {
	Actor string
	At    time.Time
	Loc   *time.Location
}

func NewAuditStamp(actor string, at time.Time, loc *time.Location) AuditStamp {
	if actor == "" {
		actor = appctx.UnknownActor
	}
	if loc == nil {
		loc = time.UTC
	}
	return AuditStamp{Actor: actor, At: at, Loc: loc}
}

// FormatTimestamp renders the stamp in the organisation's timezone, not the viewer's.
func (s AuditStamp) FormatTimestamp() string {
	return s.At.In(s.Loc).Format(AuditTimeLayout)
}

func (s AuditStamp) FormatUpdated(field, oldValue, newValue string) string {
	return fmt.Sprintf("%s updated %s from %s to %s at %s\n", s.Actor, field, oldValue, newValue, s.FormatTimestamp())
}

func (s AuditStamp) FormatAdded(entityLabel, name string) string {
	return fmt.Sprintf("%s added %s \"%s\" at %s\n", s.Actor, entityLabel, name, s.FormatTimestamp())
}

func (s AuditStamp) FormatRemoved(entityLabel, name string) string {
	return fmt.Sprintf("%s removed %s \"%s\" at %s\n", s.Actor, entityLabel, name, s.FormatTimestamp())
}
