package sidebar

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// Facet is one of the cached slices of a user's sidebar.
type Facet string

const (
	FacetThreads   Facet = "threads"
	FacetFolders   Facet = "folders"
	FacetTags      Facet = "tags"
	FacetTimestamp Facet = "timestamp"
)

// Facets lists every facet in key order.
var Facets = []Facet{FacetThreads, FacetFolders, FacetTags, FacetTimestamp}

const keyRoot = "sidebar"

// UserPrefix is the prefix shared by every cache key of userID. Clearing it
// drops all four facets, scoped pages included. The user id is escaped so it
// can never contain the ':' separator.
func UserPrefix(userID string) string {
	return keyRoot + ":" + url.QueryEscape(userID) + ":"
}

// Key returns sidebar:<user>:<facet>[:<scope>].
func Key(userID string, f Facet, scope string) string {
	k := UserPrefix(userID) + string(f)
	if scope != "" {
		k += ":" + scope
	}
	return k
}

// Scope names the page a threads entry holds. The default first page has the
// empty scope; any folder, cursor or non-default limit gets its own entry.
func Scope(p model.PageParams, defaultLimit int) string {
	var parts []string
	if p.FolderID != nil {
		parts = append(parts, "f="+url.QueryEscape(*p.FolderID))
	}
	if p.StartingAfter != nil {
		parts = append(parts, "a="+url.QueryEscape(*p.StartingAfter))
	}
	if p.EndingBefore != nil {
		parts = append(parts, "b="+url.QueryEscape(*p.EndingBefore))
	}
	if len(parts) == 0 && p.Limit == defaultLimit {
		return ""
	}
	parts = append(parts, "l="+strconv.Itoa(p.Limit))
	return strings.Join(parts, ",")
}
