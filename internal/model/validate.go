package model

import "fmt"

// Validate checks the cursor and limit rules for a page request.
func (p PageParams) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be a positive integer, got %d", ErrValidation, p.Limit)
	}
	if p.StartingAfter != nil && p.EndingBefore != nil {
		return fmt.Errorf("%w: startingAfter and endingBefore are mutually exclusive", ErrValidation)
	}
	if p.StartingAfter != nil && *p.StartingAfter == "" {
		return fmt.Errorf("%w: startingAfter must not be empty", ErrValidation)
	}
	if p.EndingBefore != nil && *p.EndingBefore == "" {
		return fmt.Errorf("%w: endingBefore must not be empty", ErrValidation)
	}
	if p.FolderID != nil && *p.FolderID == "" {
		return fmt.Errorf("%w: folderId must not be empty", ErrValidation)
	}
	return nil
}

// Clamp bounds the limit to [1, max], falling back to def when unset.
func (p PageParams) Clamp(def, max int) PageParams {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	return p
}
