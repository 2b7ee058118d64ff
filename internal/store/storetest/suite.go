// Package storetest holds a compliance suite shared by every store.Store driver.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

// Run exercises the store contract against a store.Store implementation.
// makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("ScenarioA", func(t *testing.T) { scenarioA(t, makeStore(t)) })
	t.Run("PagingProperties", func(t *testing.T) { pagingProperties(t, makeStore(t)) })
	t.Run("EndingBefore", func(t *testing.T) { endingBefore(t, makeStore(t)) })
	t.Run("FolderScope", func(t *testing.T) { folderScope(t, makeStore(t)) })
	t.Run("CursorErrors", func(t *testing.T) { cursorErrors(t, makeStore(t)) })
	t.Run("FoldersAndTags", func(t *testing.T) { foldersAndTags(t, makeStore(t)) })
	t.Run("UserIsolation", func(t *testing.T) { userIsolation(t, makeStore(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

// seed creates n threads for userID, one second apart, oldest first.
func seed(t *testing.T, s store.Store, userID string, n int, folderID *string) []model.Thread {
	t.Helper()
	out := make([]model.Thread, 0, n)
	for i := 1; i <= n; i++ {
		th, err := s.Threads().Create(context.Background(), &model.Thread{
			Title:      fmt.Sprintf("t%d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
			Visibility: model.VisibilityPrivate,
			UserID:     userID,
			FolderID:   folderID,
		})
		if err != nil {
			t.Fatalf("CreateThread t%d: %v", i, err)
		}
		out = append(out, *th)
	}
	return out
}

func ids(ts []model.Thread) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

func assertTitles(t *testing.T, got []model.Thread, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("titles: got %v want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("titles: got %v want %v", g, want)
		}
	}
}

func scenarioA(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	ts := seed(t, s, user, 5, nil)

	p1, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 3})
	if err != nil {
		t.Fatalf("Page 1: %v", err)
	}
	assertTitles(t, p1.Threads, "t5", "t4", "t3")
	if !p1.HasMore {
		t.Fatalf("Page 1: expected hasMore")
	}

	p2, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 3, StartingAfter: ptr(ts[2].ID)})
	if err != nil {
		t.Fatalf("Page 2: %v", err)
	}
	assertTitles(t, p2.Threads, "t2", "t1")
	if p2.HasMore {
		t.Fatalf("Page 2: unexpected hasMore")
	}
}

// pagingProperties walks the full list for several limits and checks order,
// bounds, uniqueness and hasMore against the seeded superset.
func pagingProperties(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	seeded := seed(t, s, user, 7, nil)
	// Two threads sharing a timestamp exercise the id tie-break.
	for i := 0; i < 2; i++ {
		th, err := s.Threads().Create(ctx, &model.Thread{
			Title: fmt.Sprintf("tie%d", i), CreatedAt: base.Add(4 * time.Second),
			Visibility: model.VisibilityPublic, UserID: user,
		})
		if err != nil {
			t.Fatalf("CreateThread tie: %v", err)
		}
		seeded = append(seeded, *th)
	}
	total := len(seeded)

	for limit := 1; limit <= total+1; limit++ {
		seen := map[string]bool{}
		var prev *model.Thread
		var cursor *string
		for {
			page, err := s.Threads().Page(ctx, user, model.PageParams{Limit: limit, StartingAfter: cursor})
			if err != nil {
				t.Fatalf("limit=%d Page: %v", limit, err)
			}
			if len(page.Threads) > limit {
				t.Fatalf("limit=%d got %d threads", limit, len(page.Threads))
			}
			for i := range page.Threads {
				th := page.Threads[i]
				if seen[th.ID] {
					t.Fatalf("limit=%d duplicate %s", limit, th.ID)
				}
				seen[th.ID] = true
				if prev != nil && !model.Before(*prev, th) {
					t.Fatalf("limit=%d order broken at %s", limit, th.Title)
				}
				prev = &th
			}
			if wantMore := len(seen) < total; page.HasMore != wantMore {
				t.Fatalf("limit=%d hasMore=%v after %d of %d", limit, page.HasMore, len(seen), total)
			}
			if !page.HasMore {
				break
			}
			last := page.Threads[len(page.Threads)-1].ID
			cursor = &last
		}
		if len(seen) != total {
			t.Fatalf("limit=%d visited %d of %d", limit, len(seen), total)
		}
	}
}

func endingBefore(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	ts := seed(t, s, user, 6, nil)

	// Threads preceding t2 in descending order are t6..t3; the two nearest are t4, t3.
	page, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 2, EndingBefore: ptr(ts[1].ID)})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	assertTitles(t, page.Threads, "t4", "t3")
	if !page.HasMore {
		t.Fatalf("expected hasMore toward the head")
	}

	page, err = s.Threads().Page(ctx, user, model.PageParams{Limit: 5, EndingBefore: ptr(ts[3].ID)})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	assertTitles(t, page.Threads, "t6", "t5")
	if page.HasMore {
		t.Fatalf("unexpected hasMore at the head")
	}
}

func folderScope(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	f, err := s.Folders().Create(ctx, &model.Folder{Name: "work", Color: "#f00", UserID: user})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	seed(t, s, user, 3, nil)
	inFolder := seed(t, s, user, 3, &f.ID)

	page, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 2, FolderID: &f.ID})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Threads) != 2 || !page.HasMore {
		t.Fatalf("folder page: n=%d hasMore=%v", len(page.Threads), page.HasMore)
	}
	for _, th := range page.Threads {
		if th.FolderID == nil || *th.FolderID != f.ID {
			t.Fatalf("thread %s outside folder", th.ID)
		}
	}

	// Moving a thread out shrinks the folder scope.
	if _, err := s.Threads().Move(ctx, user, inFolder[0].ID, nil); err != nil {
		t.Fatalf("Move: %v", err)
	}
	page, err = s.Threads().Page(ctx, user, model.PageParams{Limit: 10, FolderID: &f.ID})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Threads) != 2 || page.HasMore {
		t.Fatalf("after move: n=%d hasMore=%v", len(page.Threads), page.HasMore)
	}

	// Deleting the folder keeps its threads.
	if err := s.Folders().Delete(ctx, user, f.ID); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	all, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 10})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(all.Threads) != 6 {
		t.Fatalf("after folder delete: n=%d", len(all.Threads))
	}
	for _, th := range all.Threads {
		if th.FolderID != nil {
			t.Fatalf("thread %s still references deleted folder", th.ID)
		}
	}
}

func cursorErrors(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	ts := seed(t, s, user, 2, nil)

	cases := []model.PageParams{
		{Limit: 0},
		{Limit: -1},
		{Limit: 2, StartingAfter: ptr(ts[0].ID), EndingBefore: ptr(ts[1].ID)},
		{Limit: 2, StartingAfter: ptr("does-not-exist")},
		{Limit: 2, EndingBefore: ptr("does-not-exist")},
	}
	for i, p := range cases {
		if _, err := s.Threads().Page(ctx, user, p); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("case %d: want ErrValidation, got %v", i, err)
		}
	}
	// A cursor owned by another user is unknown to this one.
	if _, err := s.Threads().Page(ctx, "other-"+user, model.PageParams{Limit: 2, StartingAfter: ptr(ts[0].ID)}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("foreign cursor: want ErrValidation, got %v", err)
	}
}

func foldersAndTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()

	fb, err := s.Folders().Create(ctx, &model.Folder{Name: "b", Color: "#111", UserID: user})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if _, err := s.Folders().Create(ctx, &model.Folder{Name: "a", Color: "#222", UserID: user}); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	fl, err := s.Folders().List(ctx, user)
	if err != nil || len(fl) != 2 || fl[0].Name != "a" {
		t.Fatalf("ListFolders: %v err=%v", fl, err)
	}
	if got, err := s.Folders().Rename(ctx, user, fb.ID, "c", ""); err != nil || got.Name != "c" || got.Color != "#111" {
		t.Fatalf("RenameFolder: %v err=%v", got, err)
	}

	tz, err := s.Tags().Create(ctx, &model.Tag{Label: "zeta", Color: "#333", UserID: user})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	ta, err := s.Tags().Create(ctx, &model.Tag{Label: "alpha", Color: "#444", UserID: user})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	th := seed(t, s, user, 1, nil)[0]
	for _, id := range []string{tz.ID, ta.ID} {
		if err := s.Threads().AddTag(ctx, user, th.ID, id); err != nil {
			t.Fatalf("AddTag: %v", err)
		}
	}
	got, err := s.Threads().Get(ctx, user, th.ID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if len(got.TagIDs) != 2 || got.TagIDs[0] != ta.ID || got.TagIDs[1] != tz.ID {
		t.Fatalf("TagIDs order: %v", got.TagIDs)
	}

	if _, err := s.Tags().Relabel(ctx, user, tz.ID, "aardvark", ""); err != nil {
		t.Fatalf("RelabelTag: %v", err)
	}
	page, err := s.Threads().Page(ctx, user, model.PageParams{Limit: 5})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if tids := page.Threads[0].TagIDs; len(tids) != 2 || tids[0] != tz.ID {
		t.Fatalf("TagIDs after relabel: %v", tids)
	}

	if err := s.Tags().Delete(ctx, user, tz.ID); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err := s.Threads().RemoveTag(ctx, user, th.ID, ta.ID); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	got, err = s.Threads().Get(ctx, user, th.ID)
	if err != nil || len(got.TagIDs) != 0 {
		t.Fatalf("TagIDs after delete: %v err=%v", got, err)
	}
	tl, err := s.Tags().List(ctx, user)
	if err != nil || len(tl) != 1 || tl[0].ID != ta.ID {
		t.Fatalf("ListTags: %v err=%v", tl, err)
	}

	if err := s.Threads().Delete(ctx, user, th.ID); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if _, err := s.Threads().Get(ctx, user, th.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get deleted: want ErrNotFound, got %v", err)
	}
}

func userIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := "u-" + uuid.NewString()
	bob := "u-" + uuid.NewString()
	seed(t, s, alice, 2, nil)
	bf, err := s.Folders().Create(ctx, &model.Folder{Name: "bob", Color: "#000", UserID: bob})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	page, err := s.Threads().Page(ctx, bob, model.PageParams{Limit: 10})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Threads) != 0 || page.HasMore {
		t.Fatalf("bob sees %d threads", len(page.Threads))
	}
	if page.Threads == nil {
		t.Fatalf("empty page must carry an empty slice")
	}
	if fl, err := s.Folders().List(ctx, alice); err != nil || len(fl) != 0 {
		t.Fatalf("alice folders: %v err=%v", fl, err)
	}
	// Filing a thread into another user's folder is rejected.
	if _, err := s.Threads().Create(ctx, &model.Thread{Title: "x", UserID: alice, Visibility: model.VisibilityPrivate, FolderID: &bf.ID}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign folder: want ErrNotFound, got %v", err)
	}
}
