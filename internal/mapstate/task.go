package mapstate

import (
	"context"

	"github.com/google/uuid"
)

// task is the handle of one in-flight fetch. A Store keeps at most one per
// resource kind; starting a new one cancels its predecessor.
type task struct {
	id     uuid.UUID
	kind   string
	ctx    context.Context
	cancel context.CancelFunc
}

// startTaskLocked cancels the task in slot and installs a new one derived from parent.
func startTaskLocked(slot **task, parent context.Context, kind string) *task {
	cancelTaskLocked(slot)
	ctx, cancel := context.WithCancel(parent)
	t := &task{id: uuid.New(), kind: kind, ctx: ctx, cancel: cancel}
	*slot = t
	return t
}

func cancelTaskLocked(slot **task) {
	if *slot != nil {
		(*slot).cancel()
		*slot = nil
	}
}

// finishLocked releases t. owned reports that no newer task replaced it;
// live additionally requires that its context was not canceled.
func (t *task) finishLocked(slot **task) (owned, live bool) {
	owned = *slot == t
	live = owned && t.ctx.Err() == nil
	if owned {
		*slot = nil
	}
	t.cancel()
	return owned, live
}
