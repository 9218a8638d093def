package models

import (
	"sort"
	"strings"
)

// Find returns the index of the workspace with id, or -1.
func Find(list []Workspace, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// Children lists workspaces nested directly under id. A child is any
// workspace whose ParentID is id or that id links to.
func Children(list []Workspace, id string) []Workspace {
	linked := map[string]bool{}
	if i := Find(list, id); i >= 0 {
		for _, l := range list[i].Links() {
			linked[l.WorkspaceID] = true
		}
	}
	var out []Workspace
	for _, ws := range list {
		if ws.ID == id {
			continue
		}
		if ws.ParentID == id || linked[ws.ID] {
			out = append(out, ws)
		}
	}
	return out
}

// Descendants returns the ids of every workspace owned by id through
// ParentID, at any depth, in breadth-first order. Plain links from other
// workspaces do not confer ownership. Cycles are tolerated.
func Descendants(list []Workspace, id string) []string {
	owned := map[string][]string{}
	for _, ws := range list {
		if ws.ParentID != "" {
			owned[ws.ParentID] = append(owned[ws.ParentID], ws.ID)
		}
	}
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range owned[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// StripLinksTo removes every SubWorkspaceLink that points at one of ids and
// returns the indexes of the workspaces that changed.
func StripLinksTo(list []Workspace, ids map[string]bool) []int {
	var changed []int
	for i := range list {
		kept := make(Items, 0, len(list[i].Items))
		for _, it := range list[i].Items {
			if l, ok := it.(SubWorkspaceLink); ok && ids[l.WorkspaceID] {
				continue
			}
			kept = append(kept, it)
		}
		if len(kept) != len(list[i].Items) {
			list[i].Items = kept
			changed = append(changed, i)
		}
	}
	return changed
}

// DanglingLinks returns links whose target is absent from list, keyed by
// the id of the workspace holding them.
func DanglingLinks(list []Workspace) map[string][]SubWorkspaceLink {
	present := make(map[string]bool, len(list))
	for _, ws := range list {
		if !ws.Deleted {
			present[ws.ID] = true
		}
	}
	out := map[string][]SubWorkspaceLink{}
	for _, ws := range list {
		for _, l := range ws.Links() {
			if !present[l.WorkspaceID] {
				out[ws.ID] = append(out[ws.ID], l)
			}
		}
	}
	return out
}

// Roots returns workspaces that are not nested under another live workspace.
func Roots(list []Workspace) []Workspace {
	present := make(map[string]bool, len(list))
	for _, ws := range list {
		present[ws.ID] = true
	}
	var out []Workspace
	for _, ws := range list {
		if ws.ParentID == "" || !present[ws.ParentID] {
			out = append(out, ws)
		}
	}
	return out
}

// SortForDrawer orders workspaces favourites first, then most recently
// accessed, then by case-insensitive name.
func SortForDrawer(list []Workspace) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		if a.LastAccessed != b.LastAccessed {
			return a.LastAccessed > b.LastAccessed
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
