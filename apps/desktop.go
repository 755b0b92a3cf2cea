package apps

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/ini.v1"
)

// App is a single installed application parsed from an XDG desktop entry.
type App struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Exec        string   `json:"exec"`
	Icon        string   `json:"icon,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Description string   `json:"description,omitempty"`
	NoDisplay   bool     `json:"noDisplay,omitempty"`
	Path        string   `json:"path"`
}

// fieldCodes matches the %f/%u style placeholders a desktop Exec line may
// carry. They describe file arguments the launcher never supplies.
var fieldCodes = regexp.MustCompile(`%[fFuUdDnNickvm]`)

// Command returns the Exec line with field codes stripped, ready for sh -c.
func (a App) Command() string {
	return strings.TrimSpace(fieldCodes.ReplaceAllString(a.Exec, ""))
}

// ParseDesktopFile reads a .desktop entry. Desktop entries are INI files with
// a [Desktop Entry] section; anything else in the file is ignored.
func ParseDesktopFile(path string) (App, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         false,
		UnparseableSections: []string{},
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return App{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	section, err := file.GetSection("Desktop Entry")
	if err != nil {
		return App{}, fmt.Errorf("%s has no [Desktop Entry] section", path)
	}

	app := App{
		ID:          idFromPath(path),
		Name:        section.Key("Name").String(),
		Exec:        section.Key("Exec").String(),
		Icon:        section.Key("Icon").String(),
		Description: section.Key("Comment").String(),
		NoDisplay:   section.Key("NoDisplay").MustBool(false),
		Path:        path,
	}

	app.Categories = splitList(section.Key("Categories").String())
	app.Keywords = splitList(section.Key("Keywords").String())

	if app.Name == "" {
		return App{}, fmt.Errorf("%s has no Name", path)
	}
	if app.Exec == "" {
		return App{}, fmt.Errorf("%s has no Exec", path)
	}
	return app, nil
}

// splitList splits a semicolon-separated desktop entry list value.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// idFromPath derives the stable application id from the file name, e.g.
// /usr/share/applications/org.gimp.GIMP.desktop -> org.gimp.GIMP
func idFromPath(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".desktop")
}
