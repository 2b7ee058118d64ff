package httpclient

import (
	"context"
	"net/url"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

func (c *Client) CreateThread(ctx context.Context, userID string, in model.CreateThreadRequest) (*model.Thread, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Thread
	resp, err := req.SetBody(in).SetResult(&out).Post("/api/threads")
	if err := classify("create thread", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteThread(ctx context.Context, userID, threadID string) error {
	return c.delete(ctx, userID, "delete thread", "/api/threads/"+url.PathEscape(threadID))
}

// MoveThread files the thread under folderID; nil takes it out of its folder.
func (c *Client) MoveThread(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Thread
	resp, err := req.SetBody(model.MoveThreadRequest{FolderID: folderID}).SetResult(&out).
		Put("/api/threads/" + url.PathEscape(threadID) + "/folder")
	if err := classify("move thread", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddThreadTag(ctx context.Context, userID, threadID, tagID string) error {
	req, err := c.request(ctx, userID)
	if err != nil {
		return err
	}
	resp, err := req.Put("/api/threads/" + url.PathEscape(threadID) + "/tags/" + url.PathEscape(tagID))
	return classify("add thread tag", resp, err, model.ErrNotFound)
}

func (c *Client) RemoveThreadTag(ctx context.Context, userID, threadID, tagID string) error {
	return c.delete(ctx, userID, "remove thread tag",
		"/api/threads/"+url.PathEscape(threadID)+"/tags/"+url.PathEscape(tagID))
}

func (c *Client) CreateFolder(ctx context.Context, userID string, in model.FolderRequest) (*model.Folder, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Folder
	resp, err := req.SetBody(in).SetResult(&out).Post("/api/folders")
	if err := classify("create folder", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RenameFolder(ctx context.Context, userID, folderID string, in model.FolderRequest) (*model.Folder, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Folder
	resp, err := req.SetBody(in).SetResult(&out).Patch("/api/folders/" + url.PathEscape(folderID))
	if err := classify("rename folder", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFolder(ctx context.Context, userID, folderID string) error {
	return c.delete(ctx, userID, "delete folder", "/api/folders/"+url.PathEscape(folderID))
}

func (c *Client) CreateTag(ctx context.Context, userID string, in model.TagRequest) (*model.Tag, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Tag
	resp, err := req.SetBody(in).SetResult(&out).Post("/api/tags")
	if err := classify("create tag", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RelabelTag(ctx context.Context, userID, tagID string, in model.TagRequest) (*model.Tag, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.Tag
	resp, err := req.SetBody(in).SetResult(&out).Patch("/api/tags/" + url.PathEscape(tagID))
	if err := classify("relabel tag", resp, err, model.ErrNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTag(ctx context.Context, userID, tagID string) error {
	return c.delete(ctx, userID, "delete tag", "/api/tags/"+url.PathEscape(tagID))
}

func (c *Client) delete(ctx context.Context, userID, op, path string) error {
	req, err := c.request(ctx, userID)
	if err != nil {
		return err
	}
	resp, err := req.Delete(path)
	return classify(op, resp, err, model.ErrNotFound)
}
