package sidebar

import (
	"sort"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// catalog indexes the folders and tags a user owns. Rows of other owners are
// dropped so a snapshot can never leak across users.
type catalog struct {
	folders map[string]model.Folder
	tags    map[string]model.Tag
}

func newCatalog(userID string, folders []model.Folder, tags []model.Tag) catalog {
	c := catalog{folders: make(map[string]model.Folder, len(folders)), tags: make(map[string]model.Tag, len(tags))}
	for _, f := range folders {
		if f.UserID == userID {
			c.folders[f.ID] = f
		}
	}
	for _, t := range tags {
		if t.UserID == userID {
			c.tags[t.ID] = t
		}
	}
	return c
}

// row builds the sidebar view of t. Unknown folder or tag ids are dropped.
func (c catalog) row(t model.Thread) model.SidebarThread {
	st := model.SidebarThread{
		ID:         t.ID,
		Title:      t.Title,
		CreatedAt:  t.CreatedAt,
		Visibility: t.Visibility,
		UserID:     t.UserID,
		UpdatedAt:  t.UpdatedAt,
		Tags:       []model.TagSnapshot{},
	}
	if t.FolderID != nil {
		if f, ok := c.folders[*t.FolderID]; ok && f.UserID == t.UserID {
			st.Folder = &model.FolderSnapshot{Name: f.Name, Color: f.Color}
		}
	}
	for _, id := range t.TagIDs {
		if tg, ok := c.tags[id]; ok && tg.UserID == t.UserID {
			st.Tags = append(st.Tags, model.TagSnapshot{ID: tg.ID, Label: tg.Label, Color: tg.Color, UserID: tg.UserID})
		}
	}
	return st
}

// Compose joins a page with the user's folders and tags into SidebarData.
// Thread order is the page order; folder and tag lists keep backend order.
func Compose(userID string, page *model.Page, folders []model.Folder, tags []model.Tag) model.SidebarData {
	c := newCatalog(userID, folders, tags)
	out := model.SidebarData{
		Threads: make([]model.SidebarThread, 0, len(page.Threads)),
		Folders: []model.Folder{},
		Tags:    []model.Tag{},
		HasMore: page.HasMore,
	}
	for _, f := range folders {
		if f.UserID == userID {
			out.Folders = append(out.Folders, f)
		}
	}
	for _, t := range tags {
		if t.UserID == userID {
			out.Tags = append(out.Tags, t)
		}
	}
	for _, t := range page.Threads {
		if t.UserID != userID {
			continue
		}
		out.Threads = append(out.Threads, c.row(t))
	}
	return out
}

func rowBefore(a, b model.SidebarThread) bool {
	return model.Before(model.Thread{ID: a.ID, CreatedAt: a.CreatedAt}, model.Thread{ID: b.ID, CreatedAt: b.CreatedAt})
}

// insertRow places row at its sorted position, replacing any row with the same id.
func insertRow(rows []model.SidebarThread, row model.SidebarThread) []model.SidebarThread {
	rows = removeRow(rows, row.ID)
	i := sort.Search(len(rows), func(i int) bool { return rowBefore(row, rows[i]) })
	rows = append(rows, model.SidebarThread{})
	copy(rows[i+1:], rows[i:])
	rows[i] = row
	return rows
}

func removeRow(rows []model.SidebarThread, id string) []model.SidebarThread {
	out := make([]model.SidebarThread, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
