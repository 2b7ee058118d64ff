package sidebar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// Actions performs a backend mutation and then applies the matching
// invalidation, so callers never touch the cache directly.
type Actions struct {
	backend Mutator
	agg     *Aggregator
	inv     *Invalidator
	now     func() time.Time
	log     zerolog.Logger
}

// NewActions wires actions over backend. agg receives provisional rows for
// created threads and may be nil.
func NewActions(backend Mutator, agg *Aggregator, inv *Invalidator, log zerolog.Logger) *Actions {
	now := time.Now
	if agg != nil {
		now = agg.opts.Now
	}
	return &Actions{backend: backend, agg: agg, inv: inv, now: now, log: log.With().Str("component", "sidebar_actions").Logger()}
}

// apply runs after a successful mutation. An invalidation failure is logged:
// the mutation already happened and the next TTL expiry converges anyway.
func (a *Actions) apply(ctx context.Context, m Mutation) {
	if err := a.inv.Apply(ctx, m); err != nil {
		a.log.Warn().Err(err).Str("kind", string(m.Kind)).Msg("invalidation failed")
	}
}

// CreateThread shows the thread in the sidebar before the backend confirms
// it. The id and creation time are chosen here so the confirmed row lands
// where the provisional one was. A rejected create retracts the row.
func (a *Actions) CreateThread(ctx context.Context, userID string, in model.CreateThreadRequest) (*model.Thread, error) {
	if userID == "" {
		return nil, fmt.Errorf("create thread: %w", model.ErrUnauthorized)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt == nil {
		now := a.now().UTC().Truncate(time.Microsecond)
		in.CreatedAt = &now
	}
	a.insertProvisional(ctx, userID, in)

	t, err := a.backend.CreateThread(ctx, userID, in)
	if err != nil {
		a.retractProvisional(ctx, userID, in.ID)
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: ThreadCreated, UserID: userID, Thread: t})
	return t, nil
}

// insertProvisional puts the row into the cached default page and the live
// view. Other contexts see the invalidation that follows the confirmation.
func (a *Actions) insertProvisional(ctx context.Context, userID string, in model.CreateThreadRequest) {
	vis := in.Visibility
	if vis == "" {
		vis = model.VisibilityPrivate
	}
	t := model.Thread{
		ID:         in.ID,
		Title:      strings.TrimSpace(in.Title),
		CreatedAt:  *in.CreatedAt,
		UpdatedAt:  *in.CreatedAt,
		Visibility: vis,
		UserID:     userID,
		FolderID:   in.FolderID,
	}
	if a.agg != nil {
		if err := a.agg.insertProvisional(ctx, userID, t); err != nil {
			a.log.Warn().Err(err).Str("thread_id", t.ID).Msg("provisional insert failed")
		}
	}
	if u := a.inv.currentUpdater(); u != nil {
		u.InsertThread(t)
	}
}

func (a *Actions) retractProvisional(ctx context.Context, userID, threadID string) {
	if a.agg != nil {
		if err := a.agg.retractProvisional(ctx, userID, threadID); err != nil {
			a.log.Warn().Err(err).Str("thread_id", threadID).Msg("provisional retract failed")
		}
	}
	if u := a.inv.currentUpdater(); u != nil {
		u.RemoveThread(threadID)
	}
}

func (a *Actions) DeleteThread(ctx context.Context, userID, threadID string) error {
	if err := a.backend.DeleteThread(ctx, userID, threadID); err != nil {
		return err
	}
	a.apply(ctx, Mutation{Kind: ThreadDeleted, UserID: userID, ThreadID: threadID})
	return nil
}

func (a *Actions) MoveThread(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	t, err := a.backend.MoveThread(ctx, userID, threadID, folderID)
	if err != nil {
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: ThreadMoved, UserID: userID, ThreadID: threadID})
	return t, nil
}

func (a *Actions) TagThread(ctx context.Context, userID, threadID, tagID string) error {
	if err := a.backend.AddThreadTag(ctx, userID, threadID, tagID); err != nil {
		return err
	}
	a.apply(ctx, Mutation{Kind: ThreadTagged, UserID: userID, ThreadID: threadID})
	return nil
}

func (a *Actions) UntagThread(ctx context.Context, userID, threadID, tagID string) error {
	if err := a.backend.RemoveThreadTag(ctx, userID, threadID, tagID); err != nil {
		return err
	}
	a.apply(ctx, Mutation{Kind: ThreadTagged, UserID: userID, ThreadID: threadID})
	return nil
}

func (a *Actions) CreateFolder(ctx context.Context, userID string, in model.FolderRequest) (*model.Folder, error) {
	f, err := a.backend.CreateFolder(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: FolderCreated, UserID: userID})
	return f, nil
}

func (a *Actions) RenameFolder(ctx context.Context, userID, folderID string, in model.FolderRequest) (*model.Folder, error) {
	f, err := a.backend.RenameFolder(ctx, userID, folderID, in)
	if err != nil {
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: FolderRenamed, UserID: userID})
	return f, nil
}

func (a *Actions) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if err := a.backend.DeleteFolder(ctx, userID, folderID); err != nil {
		return err
	}
	a.apply(ctx, Mutation{Kind: FolderDeleted, UserID: userID})
	return nil
}

func (a *Actions) CreateTag(ctx context.Context, userID string, in model.TagRequest) (*model.Tag, error) {
	t, err := a.backend.CreateTag(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: TagCreated, UserID: userID})
	return t, nil
}

func (a *Actions) RelabelTag(ctx context.Context, userID, tagID string, in model.TagRequest) (*model.Tag, error) {
	t, err := a.backend.RelabelTag(ctx, userID, tagID, in)
	if err != nil {
		return nil, err
	}
	a.apply(ctx, Mutation{Kind: TagRelabeled, UserID: userID})
	return t, nil
}

func (a *Actions) DeleteTag(ctx context.Context, userID, tagID string) error {
	if err := a.backend.DeleteTag(ctx, userID, tagID); err != nil {
		return err
	}
	a.apply(ctx, Mutation{Kind: TagDeleted, UserID: userID})
	return nil
}
