// Package site holds the content model and the generation context that a
// publishing run accumulates into.
package site

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/folders"
	"git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

// Context accumulates the content produced by one publishing run.
//
// A Context is owned by the pipeline executor and handed to one step at a
// time; it is not safe for concurrent use. Steps that fan out must collect
// their results and apply them after the concurrent work has finished.
type Context struct {
	Site    Site
	Folders folders.Group
	Index   Index

	sections  map[string]*Section
	pages     map[string]Page
	itemPaths map[string]string // item path -> section id

	stepName   string
	generating bool
	startedAt  time.Time
}

// NewContext creates the context for a run whose first step is firstStep.
func NewContext(s Site, f folders.Group, firstStep string) *Context {
	return &Context{
		Site:      s,
		Folders:   f,
		sections:  make(map[string]*Section),
		pages:     make(map[string]Page),
		itemPaths: make(map[string]string),
		stepName:  firstStep,
	}
}

// GenerationWillBegin marks the start of the run.
func (c *Context) GenerationWillBegin() {
	c.generating = true
	c.startedAt = time.Now()
}

// PrepareForStep records the step about to run.
func (c *Context) PrepareForStep(name string) {
	c.stepName = name
}

// StepName returns the name of the executing step.
func (c *Context) StepName() string { return c.stepName }

// Generating reports whether GenerationWillBegin has been called.
func (c *Context) Generating() bool { return c.generating }

// StartedAt returns when generation began.
func (c *Context) StartedAt() time.Time { return c.startedAt }

// SetIndex replaces the index content.
func (c *Context) SetIndex(content Content) {
	c.Index.Content = content
}

// AddSection creates the section id, or replaces the content of an existing
// one while keeping its items. A section may not share its path with a page
// or an item.
func (c *Context) AddSection(id string, content Content) error {
	if s, ok := c.sections[id]; ok {
		s.Content = content
		return nil
	}
	if err := c.sectionPathFree(id); err != nil {
		return err
	}
	c.sections[id] = &Section{ID: id, Content: content}
	return nil
}

func (c *Context) sectionPathFree(id string) error {
	if _, ok := c.pages[id]; ok {
		return errors.ContentError("section path already used by a page").
			WithContext("path", id).
			Build()
	}
	if _, ok := c.itemPaths[id]; ok {
		return errors.ContentError("section path already used by an item").
			WithContext("path", id).
			Build()
	}
	return nil
}

// Section returns a copy of section id.
func (c *Context) Section(id string) (Section, bool) {
	s, ok := c.sections[id]
	if !ok {
		return Section{}, false
	}
	return s.clone(), true
}

// SectionIDs returns the ids of all sections, sorted.
func (c *Context) SectionIDs() []string {
	ids := make([]string, 0, len(c.sections))
	for id := range c.sections {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Sections returns copies of all sections sorted by id.
func (c *Context) Sections() []Section {
	out := make([]Section, 0, len(c.sections))
	for _, id := range c.SectionIDs() {
		out = append(out, c.sections[id].clone())
	}
	return out
}

// AddItem appends item to its section, creating the section if needed.
// Item paths are unique across the site.
func (c *Context) AddItem(item Item) error {
	if item.SectionID == "" {
		return errors.ValidationError("item has no section").
			WithContext("path", item.Path).
			Build()
	}
	if item.Path == "" {
		return errors.ValidationError("item has no path").
			WithContext("section", item.SectionID).
			Build()
	}
	if owner, ok := c.itemPaths[item.Path]; ok {
		return errors.ContentError("duplicate item path").
			WithContext("path", item.Path).
			WithContext("section", owner).
			Build()
	}
	if _, ok := c.pages[item.Path]; ok {
		return errors.ContentError("item path already used by a page").
			WithContext("path", item.Path).
			Build()
	}
	if _, ok := c.sections[item.Path]; ok {
		return errors.ContentError("item path already used by a section").
			WithContext("path", item.Path).
			Build()
	}

	s, ok := c.sections[item.SectionID]
	if !ok {
		if err := c.sectionPathFree(item.SectionID); err != nil {
			return err
		}
		s = &Section{ID: item.SectionID}
		c.sections[item.SectionID] = s
	}
	s.Items = append(s.Items, item.clone())
	c.itemPaths[item.Path] = item.SectionID
	return nil
}

// Item returns a copy of the item at path.
func (c *Context) Item(path string) (Item, bool) {
	sectionID, ok := c.itemPaths[path]
	if !ok {
		return Item{}, false
	}
	for _, it := range c.sections[sectionID].Items {
		if it.Path == path {
			return it.clone(), true
		}
	}
	return Item{}, false
}

// AllItems returns copies of every item, section by section.
func (c *Context) AllItems() []Item {
	var out []Item
	for _, id := range c.SectionIDs() {
		for _, it := range c.sections[id].Items {
			out = append(out, it.clone())
		}
	}
	return out
}

// MutateItems applies fn to every item accepted by match (all items when
// match is nil). Paths and sections may not be changed.
func (c *Context) MutateItems(match func(Item) bool, fn func(*Item) error) error {
	for _, id := range c.SectionIDs() {
		s := c.sections[id]
		for i := range s.Items {
			if match != nil && !match(s.Items[i]) {
				continue
			}
			path, section := s.Items[i].Path, s.Items[i].SectionID
			if err := fn(&s.Items[i]); err != nil {
				return err
			}
			if s.Items[i].Path != path || s.Items[i].SectionID != section {
				s.Items[i].Path, s.Items[i].SectionID = path, section
				return errors.ValidationError("item path and section cannot be mutated").
					WithContext("path", path).
					Build()
			}
		}
	}
	return nil
}

// RemoveItems deletes every item accepted by match.
func (c *Context) RemoveItems(match func(Item) bool) {
	for _, s := range c.sections {
		kept := s.Items[:0]
		for _, it := range s.Items {
			if match(it) {
				delete(c.itemPaths, it.Path)
				continue
			}
			kept = append(kept, it)
		}
		s.Items = kept
	}
}

// SortItems orders the items of section id with cmp.
func (c *Context) SortItems(id string, cmp func(a, b Item) int) {
	if s, ok := c.sections[id]; ok {
		slices.SortStableFunc(s.Items, cmp)
	}
}

// AddPage registers a standalone page. Page paths are unique.
func (c *Context) AddPage(p Page) error {
	if p.Path == "" {
		return errors.ValidationError("page has no path").Build()
	}
	if _, ok := c.pages[p.Path]; ok {
		return errors.ContentError("duplicate page path").
			WithContext("path", p.Path).
			Build()
	}
	if _, ok := c.itemPaths[p.Path]; ok {
		return errors.ContentError("page path already used by an item").
			WithContext("path", p.Path).
			Build()
	}
	if _, ok := c.sections[p.Path]; ok {
		return errors.ContentError("page path already used by a section").
			WithContext("path", p.Path).
			Build()
	}
	c.pages[p.Path] = p
	return nil
}

// Page returns the page at path.
func (c *Context) Page(path string) (Page, bool) {
	p, ok := c.pages[path]
	return p, ok
}

// Pages returns all pages sorted by path.
func (c *Context) Pages() []Page {
	paths := make([]string, 0, len(c.pages))
	for p := range c.pages {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	out := make([]Page, len(paths))
	for i, p := range paths {
		out[i] = c.pages[p]
	}
	return out
}

// OutputPath returns the absolute path of rel inside the output folder.
func (c *Context) OutputPath(rel string) (string, error) {
	return within(c.Folders.Output, rel)
}

// CachePath returns the absolute path of rel inside the caches folder.
func (c *Context) CachePath(rel string) (string, error) {
	return within(c.Folders.Caches, rel)
}

// WriteOutputFile writes data to rel inside the output folder, creating
// parent folders as needed.
func (c *Context) WriteOutputFile(rel string, data []byte) error {
	if !c.generating {
		return errors.PipelineError("output files can only be written once generation has begun").
			WithContext("path", rel).
			Build()
	}
	path, err := c.OutputPath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output folder").
			WithContext("path", rel).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output file").
			WithContext("path", rel).
			Build()
	}
	return nil
}

// Published returns a snapshot of the accumulated content.
func (c *Context) Published() Published {
	p := Published{
		Index:    c.Index,
		Sections: make(map[string]Section, len(c.sections)),
		Pages:    make(map[string]Page, len(c.pages)),
	}
	for id, s := range c.sections {
		p.Sections[id] = s.clone()
	}
	for path, page := range c.pages {
		p.Pages[path] = page
	}
	return p
}

func within(base, rel string) (string, error) {
	if base == "" {
		return "", errors.PipelineError("folders have not been set up").Build()
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.ValidationError("path escapes its folder").
			WithContext("path", rel).
			Build()
	}
	return filepath.Join(base, clean), nil
}
