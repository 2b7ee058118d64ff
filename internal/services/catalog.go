package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

const maxNameLen = 64

var colorRx = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// cleanName trims and bounds a folder name or tag label.
func cleanName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", model.ErrValidation, field)
	}
	if len(v) > maxNameLen {
		return "", fmt.Errorf("%w: %s longer than %d bytes", model.ErrValidation, field, maxNameLen)
	}
	return v, nil
}

func checkColor(c string) error {
	if c != "" && !colorRx.MatchString(c) {
		return fmt.Errorf("%w: color %q is not a hex color", model.ErrValidation, c)
	}
	return nil
}

type FolderService struct {
	store store.Store
}

func NewFolderService(s store.Store) *FolderService { return &FolderService{store: s} }

func (s *FolderService) Create(ctx context.Context, userID string, in model.FolderRequest) (*model.Folder, error) {
	name, err := cleanName("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := checkColor(in.Color); err != nil {
		return nil, err
	}
	return s.store.Folders().Create(ctx, &model.Folder{Name: name, Color: in.Color, UserID: userID})
}

// Rename sets a new name. An empty color keeps the current one.
func (s *FolderService) Rename(ctx context.Context, userID, folderID string, in model.FolderRequest) (*model.Folder, error) {
	name, err := cleanName("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := checkColor(in.Color); err != nil {
		return nil, err
	}
	return s.store.Folders().Rename(ctx, userID, folderID, name, in.Color)
}

func (s *FolderService) Delete(ctx context.Context, userID, folderID string) error {
	return s.store.Folders().Delete(ctx, userID, folderID)
}

func (s *FolderService) List(ctx context.Context, userID string) ([]model.Folder, error) {
	return s.store.Folders().List(ctx, userID)
}

type TagService struct {
	store store.Store
}

func NewTagService(s store.Store) *TagService { return &TagService{store: s} }

func (s *TagService) Create(ctx context.Context, userID string, in model.TagRequest) (*model.Tag, error) {
	label, err := cleanName("label", in.Label)
	if err != nil {
		return nil, err
	}
	if err := checkColor(in.Color); err != nil {
		return nil, err
	}
	return s.store.Tags().Create(ctx, &model.Tag{Label: label, Color: in.Color, UserID: userID})
}

// Relabel sets a new label. An empty color keeps the current one.
func (s *TagService) Relabel(ctx context.Context, userID, tagID string, in model.TagRequest) (*model.Tag, error) {
	label, err := cleanName("label", in.Label)
	if err != nil {
		return nil, err
	}
	if err := checkColor(in.Color); err != nil {
		return nil, err
	}
	return s.store.Tags().Relabel(ctx, userID, tagID, label, in.Color)
}

func (s *TagService) Delete(ctx context.Context, userID, tagID string) error {
	return s.store.Tags().Delete(ctx, userID, tagID)
}

func (s *TagService) List(ctx context.Context, userID string) ([]model.Tag, error) {
	return s.store.Tags().List(ctx, userID)
}
