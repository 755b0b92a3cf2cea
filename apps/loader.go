package apps

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/StardustXR/protostar/utils"
	"github.com/sahilm/fuzzy"
)

// Loader enumerates installed applications from the XDG data directories
// plus any extra directories from configuration. The result is a point-in-time
// snapshot; Refresh re-reads from disk.
type Loader struct {
	extraDirs []string
	limit     int

	mu   sync.RWMutex
	apps []App
}

func NewLoader(extraDirs []string, limit int) *Loader {
	return &Loader{
		extraDirs: extraDirs,
		limit:     limit,
	}
}

// appDirs returns every applications/ directory to scan.
func (l *Loader) appDirs() []string {
	var dirs []string
	for _, data := range utils.DataDirs() {
		dirs = append(dirs, filepath.Join(data, "applications"))
	}
	for _, dir := range l.extraDirs {
		dirs = append(dirs, utils.ExpandPath(dir))
	}
	return dirs
}

// Refresh scans for desktop files and replaces the snapshot. Entries that
// fail to parse or are marked NoDisplay are skipped, never fatal.
func (l *Loader) Refresh() error {
	seen := make(map[string]bool)
	var found []App

	for _, dir := range l.appDirs() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subtree, keep walking the rest
			}
			if d.IsDir() || !strings.HasSuffix(path, ".desktop") {
				return nil
			}

			app, perr := ParseDesktopFile(path)
			if perr != nil {
				utils.Verbose("Skipping %s: %v", path, perr)
				return nil
			}
			if app.NoDisplay || seen[app.ID] {
				return nil
			}

			seen[app.ID] = true
			found = append(found, app)
			return nil
		})
		if err != nil {
			utils.Warn("Failed to scan %s: %v", dir, err)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return strings.ToLower(found[i].Name) < strings.ToLower(found[j].Name)
	})

	if l.limit > 0 && len(found) > l.limit {
		found = found[:l.limit]
	}

	l.mu.Lock()
	l.apps = found
	l.mu.Unlock()

	utils.Info("Loaded %d application descriptors", len(found))
	return nil
}

// Apps returns the current snapshot.
func (l *Loader) Apps() []App {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]App, len(l.apps))
	copy(out, l.apps)
	return out
}

// ByID looks up a single application in the snapshot.
func (l *Loader) ByID(id string) (App, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, app := range l.apps {
		if app.ID == id {
			return app, true
		}
	}
	return App{}, false
}

// Filter returns apps fuzzy-matching the query against name, id and keywords,
// best matches first. An empty query returns the full snapshot.
func (l *Loader) Filter(query string) []App {
	all := l.Apps()
	if query == "" {
		return all
	}

	haystack := make([]string, len(all))
	for i, app := range all {
		haystack[i] = app.Name + " " + app.ID + " " + strings.Join(app.Keywords, " ")
	}

	matches := fuzzy.Find(query, haystack)
	out := make([]App, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
	}
	return out
}
