// Package driver defines the capability surface the core consumes to talk
// to the web photo library. All selector and page-layout knowledge lives
// behind this interface; the core only sees attributes and actions.
package driver

import (
	"context"
	"fmt"
	"time"

	"phototriage/pkg/models"
)

// DateComponents is the decomposed form the remote edit UI accepts for a
// date write-back. Offset is the fixed UTC offset the components are
// expressed in, e.g. "+03:00".
type DateComponents struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	Offset string
}

// String renders the components for logging
func (d DateComponents) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d %s",
		d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Offset)
}

// Decompose converts an absolute instant into edit-UI components in the
// given fixed-offset location.
func Decompose(instant time.Time, loc *time.Location, offset string) DateComponents {
	local := instant.In(loc)
	return DateComponents{
		Year:   local.Year(),
		Month:  local.Month(),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
		Offset: offset,
	}
}

// PageDriver is a single remote UI cursor. One session looks at one item
// at a time; there is no concurrent fan-out. Every method may fail with a
// driver-level error the engine treats as that action's failure.
type PageDriver interface {
	// GotoItem puts the session's focus on the item with the given id.
	GotoItem(ctx context.Context, id string) error

	// GotoLibraryRoot puts the focus on the library's natural first item.
	GotoLibraryRoot(ctx context.Context) error

	// CurrentAttributes reads the displayed attributes of the focused
	// item. Transient render flakiness is retried inside the driver;
	// the contract here is "returns attributes or fails".
	CurrentAttributes(ctx context.Context) (models.Attributes, error)

	// SendNext advances the cursor by one item.
	SendNext(ctx context.Context) error

	// Download transfers the focused item's binary content and returns
	// the local path it landed at.
	Download(ctx context.Context) (string, error)

	// RequestDelete moves the focused item to the remote trash.
	RequestDelete(ctx context.Context) error

	// RemovedItemDate reads the capture date of a trashed item by its
	// old id, via the removed-items view. Read-only.
	RemovedItemDate(ctx context.Context, id string) (time.Time, error)

	// WriteDateFields pushes decomposed date components into the edit
	// UI of the item with the given id.
	WriteDateFields(ctx context.Context, id string, components DateComponents) error

	// ReadDateFields reads back the currently displayed date components
	// of the item, for best-effort write verification.
	ReadDateFields(ctx context.Context, id string) (DateComponents, error)
}
