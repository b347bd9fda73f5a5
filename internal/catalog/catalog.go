package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/metrics"
)

// Item is one playable workshop entry: a video file plus its preview image,
// both living under the item's 10-digit id directory.
type Item struct {
	ID          string
	Title       string
	PreviewPath string
	VideoPath   string
	Size        int64
	ModTime     time.Time
	Rating      string
}

// Folder is a node of the folder tree declared in the Wallpaper Engine
// config. Items hold workshop ids, not paths.
type Folder struct {
	Title      string
	Items      []string
	Subfolders []*Folder
}

// State is one consistent snapshot of the catalog.
type State struct {
	Folders    []*Folder
	Items      map[string]*Item
	Unassigned []string
}

// Catalog scans the workshop directory and the Wallpaper Engine config into
// an in-memory snapshot, re-scanning lazily once the snapshot is older than
// the TTL. Media handlers re-resolve ids per request through Lookup.
type Catalog struct {
	workshopDir string
	wePath      string
	ttl         time.Duration

	mu      sync.Mutex
	state   *State
	scanned time.Time
}

// New creates a Catalog over the workshop content directory and the
// Wallpaper Engine install path (which holds config.json).
func New(workshopDir, wePath string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Catalog{workshopDir: workshopDir, wePath: wePath, ttl: ttl}
}

// State returns the current snapshot, rescanning if it is stale.
// The snapshot and everything in it must be treated as read-only.
func (c *Catalog) State() *State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil && time.Since(c.scanned) < c.ttl {
		return c.state
	}

	start := time.Now()
	st := c.scan()
	c.state = st
	c.scanned = time.Now()

	metrics.CatalogScans.Inc()
	metrics.CatalogItems.Set(float64(len(st.Items)))
	metrics.CatalogScanDuration.Observe(time.Since(start).Seconds())
	logging.Debug("catalog scan: %d items, %d root folders in %v",
		len(st.Items), len(st.Folders), time.Since(start))

	return st
}

// Invalidate drops the cached snapshot so the next State call rescans.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
}

// Lookup resolves an item id against a fresh-enough snapshot.
func (c *Catalog) Lookup(id string) (*Item, bool) {
	item, ok := c.State().Items[id]
	return item, ok
}

func (c *Catalog) scan() *State {
	st := &State{Items: map[string]*Item{}}

	folders, err := loadFolderTree(c.wePath)
	if err != nil {
		// missing or unreadable config just means a flat view
		logging.Debug("catalog: no folder tree: %v", err)
	} else {
		st.Folders = folders
	}

	st.Items = scanWorkshop(c.workshopDir)
	st.Unassigned = collectUnassigned(st.Items, st.Folders)
	return st
}

// projectFile mirrors the fields of a workshop item's project.json that
// matter here.
type projectFile struct {
	Title         string `json:"title"`
	Preview       string `json:"preview"`
	File          string `json:"file"`
	Type          string `json:"type"`
	ContentRating string `json:"contentrating"`
}

func scanWorkshop(root string) map[string]*Item {
	items := map[string]*Item{}

	entries, err := os.ReadDir(root)
	if err != nil {
		logging.Warn("catalog: cannot read workshop directory %s: %v", root, err)
		return items
	}

	for _, entry := range entries {
		id := entry.Name()
		if !entry.IsDir() || !isDigits(id) {
			continue
		}

		idDir := filepath.Join(root, id)
		data, err := os.ReadFile(filepath.Join(idDir, "project.json"))
		if err != nil {
			continue
		}

		var proj projectFile
		if err := json.Unmarshal(data, &proj); err != nil {
			logging.Debug("catalog: bad project.json in %s: %v", idDir, err)
			continue
		}
		if !strings.EqualFold(proj.Type, "video") || proj.File == "" || proj.Preview == "" {
			continue
		}

		videoPath := filepath.Join(idDir, proj.File)
		previewPath := filepath.Join(idDir, proj.Preview)
		vst, err := os.Stat(videoPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(previewPath); err != nil {
			continue
		}

		title := proj.Title
		if title == "" {
			title = id
		}

		items[id] = &Item{
			ID:          id,
			Title:       title,
			PreviewPath: previewPath,
			VideoPath:   videoPath,
			Size:        vst.Size(),
			ModTime:     vst.ModTime(),
			Rating:      proj.ContentRating,
		}
	}

	return items
}

func loadFolderTree(wePath string) ([]*Folder, error) {
	cfgPath := filepath.Join(wePath, "config.json")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", cfgPath, err)
	}

	var cfg map[string]json.RawMessage
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", cfgPath, err)
	}

	// The config is keyed by profile name. The folder list lives under
	// general.browser.folders, with general.folders as a legacy location.
	type generalSection struct {
		Browser struct {
			Folders []folderEntry `json:"folders"`
		} `json:"browser"`
		Folders []folderEntry `json:"folders"`
	}
	type profile struct {
		General generalSection `json:"general"`
	}

	for _, raw := range cfg {
		var p profile
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		list := p.General.Browser.Folders
		if len(list) == 0 {
			list = p.General.Folders
		}
		if len(list) > 0 {
			return buildTree(list), nil
		}
	}

	return nil, nil
}

// folderEntry is the on-disk shape of one folder in config.json. Items is a
// map from workshop id to an opaque flag.
type folderEntry struct {
	Title      string                     `json:"title"`
	Items      map[string]json.RawMessage `json:"items"`
	Subfolders []folderEntry              `json:"subfolders"`
}

func buildTree(entries []folderEntry) []*Folder {
	out := make([]*Folder, 0, len(entries))
	for _, e := range entries {
		f := &Folder{Title: e.Title}
		if f.Title == "" {
			f.Title = "Untitled"
		}
		for id := range e.Items {
			f.Items = append(f.Items, id)
		}
		sort.Strings(f.Items)
		f.Subfolders = buildTree(e.Subfolders)
		out = append(out, f)
	}
	return out
}

func collectUnassigned(items map[string]*Item, roots []*Folder) []string {
	assigned := map[string]bool{}
	var walk func(*Folder)
	walk = func(f *Folder) {
		for _, id := range f.Items {
			assigned[id] = true
		}
		for _, sf := range f.Subfolders {
			walk(sf)
		}
	}
	for _, r := range roots {
		walk(r)
	}

	var out []string
	for id := range items {
		if !assigned[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// FindNode resolves a slash path like /A/B to the named folder's subfolders
// and direct item ids. An unknown path yields empty results.
func FindNode(roots []*Folder, path string) (subfolders []*Folder, itemIDs []string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return roots, nil
	}

	cur := roots
	for depth, name := range parts {
		var found *Folder
		for _, f := range cur {
			if f.Title == name {
				found = f
				break
			}
		}
		if found == nil {
			return nil, nil
		}
		if depth == len(parts)-1 {
			return found.Subfolders, found.Items
		}
		cur = found.Subfolders
	}
	return nil, nil
}

// AllIDs collects every item id under the given folders, recursively.
func AllIDs(folders []*Folder) []string {
	var out []string
	for _, f := range folders {
		out = append(out, f.Items...)
		out = append(out, AllIDs(f.Subfolders)...)
	}
	return out
}

// CountRecursive counts the items in a folder including all subfolders.
func CountRecursive(f *Folder) int {
	total := len(f.Items)
	for _, sf := range f.Subfolders {
		total += CountRecursive(sf)
	}
	return total
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
