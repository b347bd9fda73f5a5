package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"wallpaper-viewer/internal/catalog"
	"wallpaper-viewer/internal/logging"
)

const (
	defaultPerPage = 45
	maxPerPage     = 500
)

// VideoOut is one item tile in API responses.
type VideoOut struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	MTime       int64  `json:"mtime"`
	Size        int64  `json:"size"`
	Rating      string `json:"rating"`
	PreviewURL  string `json:"preview_url"`
	VideoURL    string `json:"video_url"`
	WorkshopURL string `json:"workshop_url"`
}

// FolderOut is one folder tile with its recursive item count.
type FolderOut struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// ScanResponse is one page of folder and video tiles.
type ScanResponse struct {
	Breadcrumb []string    `json:"breadcrumb"`
	Folders    []FolderOut `json:"folders"`
	Videos     []VideoOut  `json:"videos"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	TotalItems int         `json:"total_items"`
}

func buildVideoOut(item *catalog.Item) VideoOut {
	out := VideoOut{
		ID:         item.ID,
		Title:      item.Title,
		MTime:      item.ModTime.Unix(),
		Size:       item.Size,
		Rating:     item.Rating,
		PreviewURL: "/media/preview/" + item.ID,
		VideoURL:   "/media/video/" + item.ID,
	}
	if len(item.ID) == 10 && isAllDigits(item.ID) {
		out.WorkshopURL = workshopURL(item.ID)
	}
	return out
}

func workshopURL(id string) string {
	return fmt.Sprintf("https://steamcommunity.com/sharedfiles/filedetails/?id=%s", id)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// sortIDs orders item ids per the sort index: 0/1 mtime desc/asc,
// 2/3 size desc/asc, 4/5 title asc/desc.
func sortIDs(ids []string, items map[string]*catalog.Item, sortIdx int) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := items[ids[i]], items[ids[j]]
		switch sortIdx {
		case 0:
			return a.ModTime.After(b.ModTime)
		case 1:
			return a.ModTime.Before(b.ModTime)
		case 2:
			return a.Size > b.Size
		case 3:
			return a.Size < b.Size
		case 4:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		default:
			return strings.ToLower(a.Title) > strings.ToLower(b.Title)
		}
	})
}

// filterIDs keeps ids that exist in the catalog, pass the mature-only
// filter, and contain every search token in their title.
func filterIDs(ids []string, items map[string]*catalog.Item, matureOnly bool, tokens []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			continue
		}
		if matureOnly && strings.ToLower(item.Rating) != "mature" {
			continue
		}
		if len(tokens) > 0 {
			title := strings.ToLower(item.Title)
			match := true
			for _, tok := range tokens {
				if !strings.Contains(title, tok) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

func searchTokens(q string) []string {
	var tokens []string
	for _, t := range strings.Fields(q) {
		tokens = append(tokens, strings.ToLower(t))
	}
	return tokens
}

// resolvePath splits /A/B and resolves it against the folder tree. The
// empty path yields the roots plus unassigned items.
func resolvePath(state *catalog.State, path string) (parts []string, subfolders []*catalog.Folder, itemIDs []string) {
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, state.Folders, append([]string(nil), state.Unassigned...)
	}
	subfolders, itemIDs = catalog.FindNode(state.Folders, path)
	return parts, subfolders, itemIDs
}

// Scan returns one page of the folder/video browser. Folder tiles come
// first; a search query flattens the subtree and hides folders.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	sortIdx, _ := strconv.Atoi(q.Get("sort_idx"))
	if sortIdx < 0 || sortIdx > 5 {
		sortIdx = 0
	}
	matureOnly := q.Get("mature_only") == "true" || q.Get("mature_only") == "1"
	tokens := searchTokens(q.Get("q"))

	state := h.catalog.State()
	breadcrumb, subfolders, itemIDs := resolvePath(state, q.Get("path"))

	var baseIDs []string
	if len(tokens) > 0 {
		seen := make(map[string]bool, len(itemIDs))
		for _, id := range itemIDs {
			seen[id] = true
		}
		baseIDs = append(baseIDs, itemIDs...)
		for _, id := range catalog.AllIDs(subfolders) {
			if !seen[id] {
				seen[id] = true
				baseIDs = append(baseIDs, id)
			}
		}
	} else {
		baseIDs = itemIDs
	}

	vids := filterIDs(baseIDs, state.Items, matureOnly, tokens)
	sortIDs(vids, state.Items, sortIdx)

	folders := []FolderOut{}
	if len(tokens) == 0 {
		for _, sf := range subfolders {
			folders = append(folders, FolderOut{Title: sf.Title, Count: catalog.CountRecursive(sf)})
		}
	}

	totalTiles := len(folders) + len(vids)
	totalPages := (totalTiles + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > totalTiles {
		end = totalTiles
	}

	resp := ScanResponse{
		Breadcrumb: breadcrumb,
		Folders:    []FolderOut{},
		Videos:     []VideoOut{},
		Page:       page,
		TotalPages: totalPages,
		TotalItems: totalTiles,
	}
	if resp.Breadcrumb == nil {
		resp.Breadcrumb = []string{}
	}

	// folders tile first, then videos, the page window cutting across both
	for i := start; i < end; i++ {
		if i < len(folders) {
			resp.Folders = append(resp.Folders, folders[i])
		} else {
			resp.Videos = append(resp.Videos, buildVideoOut(state.Items[vids[i-len(folders)]]))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// FolderVideos returns every item id under a folder path, recursively.
func (h *Handlers) FolderVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortIdx, _ := strconv.Atoi(q.Get("sort_idx"))
	if sortIdx < 0 || sortIdx > 5 {
		sortIdx = 0
	}
	matureOnly := q.Get("mature_only") == "true" || q.Get("mature_only") == "1"
	withMeta := q.Get("with_meta") == "true" || q.Get("with_meta") == "1"

	state := h.catalog.State()
	_, subfolders, itemIDs := resolvePath(state, q.Get("path"))

	seen := make(map[string]bool, len(itemIDs))
	candidates := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}
	for _, id := range catalog.AllIDs(subfolders) {
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}

	vids := filterIDs(candidates, state.Items, matureOnly, nil)
	sortIDs(vids, state.Items, sortIdx)

	w.Header().Set("Content-Type", "application/json")
	if withMeta {
		type itemMeta struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		items := make([]itemMeta, 0, len(vids))
		for _, id := range vids {
			items = append(items, itemMeta{ID: id, Title: state.Items[id].Title})
		}
		writeJSON(w, map[string]interface{}{"items": items})
		return
	}
	writeJSON(w, map[string]interface{}{"ids": vids})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteItems removes the workshop directories of the requested ids.
// Unknown ids and failed removals are reported as skipped.
func (h *Handlers) DeleteItems(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	state := h.catalog.State()
	deleted := []string{}
	skipped := []string{}
	for _, id := range req.IDs {
		if _, ok := state.Items[id]; !ok {
			skipped = append(skipped, id)
			continue
		}
		if err := h.catalog.DeleteItemDir(id); err != nil {
			logging.Warn("delete of %s failed: %v", id, err)
			skipped = append(skipped, id)
			continue
		}
		deleted = append(deleted, id)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]string{"deleted": deleted, "skipped": skipped})
}

// Playlist builds an m3u attachment from the requested ids, in order.
func (h *Handlers) Playlist(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	state := h.catalog.State()
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, id := range req.IDs {
		if item, ok := state.Items[id]; ok {
			b.WriteString(item.VideoPath)
			b.WriteByte('\n')
		}
	}

	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", "attachment; filename=we_playlist.m3u")
	if _, err := w.Write([]byte(b.String())); err != nil {
		logging.Error("failed to write playlist: %v", err)
	}
}

// WorkshopRedirect bounces the browser to the item's Steam workshop page.
func (h *Handlers) WorkshopRedirect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	http.Redirect(w, r, workshopURL(id), http.StatusFound)
}
