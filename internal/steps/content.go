package steps

import (
	"cmp"
	"context"
	"strings"

	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// AddItem adds a single item defined in code.
func AddItem(item site.Item) step.Step {
	return step.Generation("Add item '"+item.Path+"'", func(_ context.Context, gc *site.Context) error {
		return gc.AddItem(item)
	})
}

// AddPage adds a single page defined in code.
func AddPage(page site.Page) step.Step {
	return step.Generation("Add page '"+page.Path+"'", func(_ context.Context, gc *site.Context) error {
		return gc.AddPage(page)
	})
}

// MutateAllItems applies fn to every item matching pred, or to all items
// when pred is nil.
func MutateAllItems(pred func(site.Item) bool, fn func(*site.Item) error) step.Step {
	return step.Generation("Mutate all items", func(_ context.Context, gc *site.Context) error {
		return gc.MutateItems(pred, fn)
	})
}

// RemoveAllItems removes every item matching pred.
func RemoveAllItems(pred func(site.Item) bool) step.Step {
	return step.Generation("Remove all items matching predicate", func(_ context.Context, gc *site.Context) error {
		gc.RemoveItems(pred)
		return nil
	})
}

// SortItems orders the items of section, or of every section when section
// is empty.
func SortItems(section string, order func(a, b site.Item) int) step.Step {
	name := "Sort items"
	if section != "" {
		name += " in '" + section + "'"
	}
	return step.Generation(name, func(_ context.Context, gc *site.Context) error {
		ids := []string{section}
		if section == "" {
			ids = gc.SectionIDs()
		}
		for _, id := range ids {
			gc.SortItems(id, order)
		}
		return nil
	})
}

// ByDateDescending orders items newest first, then by path.
func ByDateDescending(a, b site.Item) int {
	if c := b.Content.Date.Compare(a.Content.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// ByTitle orders items by title, case insensitively.
func ByTitle(a, b site.Item) int {
	if c := cmp.Compare(strings.ToLower(a.Content.Title), strings.ToLower(b.Content.Title)); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// HasTag matches items tagged tag.
func HasTag(tag string) func(site.Item) bool {
	return func(it site.Item) bool {
		for _, t := range it.Tags {
			if strings.EqualFold(t, tag) {
				return true
			}
		}
		return false
	}
}

// Draft matches items whose frontmatter sets draft: true.
func Draft(it site.Item) bool {
	v, _ := it.Metadata["draft"].(bool)
	return v
}
