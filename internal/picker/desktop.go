package picker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"
)

// App is a launchable desktop application.
type App struct {
	ID   string // desktop file name
	Name string
	Exec string
	Path string
}

// Command returns the app's Exec line split into arguments with field
// codes removed.
func (a App) Command() ([]string, error) {
	args, err := shellwords.Parse(SanitizeExec(a.Exec))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Exec for %s: %w", a.Name, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no executable found for %s", a.Name)
	}
	return args, nil
}

// DesktopDirs returns the application directories searched for desktop
// entries, lowest priority first.
func DesktopDirs() []string {
	dirs := []string{"/usr/share/applications", "/usr/local/share/applications"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
	}
	return dirs
}

// LoadApps reads the desktop entries in dirs. An entry in a later directory
// replaces one with the same file name in an earlier directory. Hidden
// entries are dropped. Apps are sorted by name, ignoring case.
func LoadApps(dirs []string) ([]App, error) {
	byID := make(map[string]App)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".desktop" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			app, ok, err := readDesktopFile(path)
			if err != nil {
				continue
			}
			if !ok {
				// A hidden entry in a user directory masks the system one.
				delete(byID, e.Name())
				continue
			}
			app.ID = e.Name()
			byID[e.Name()] = app
		}
	}

	apps := make([]App, 0, len(byID))
	for _, app := range byID {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		a, b := strings.ToLower(apps[i].Name), strings.ToLower(apps[j].Name)
		if a != b {
			return a < b
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

func readDesktopFile(path string) (App, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return App{}, false, err
	}
	defer f.Close()

	app, ok, err := ParseDesktopEntry(f)
	app.Path = path
	return app, ok, err
}

// ParseDesktopEntry reads the [Desktop Entry] group of a desktop file. ok
// is false for entries marked NoDisplay or Hidden and for entries without
// a Name or Exec.
func ParseDesktopEntry(r io.Reader) (app App, ok bool, err error) {
	inEntry := false
	hidden := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry || line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		k, v, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(k) {
		case "Name":
			if v = strings.TrimSpace(v); v != "" {
				app.Name = v
			}
		case "Exec":
			if v = strings.TrimSpace(v); v != "" {
				app.Exec = v
			}
		case "NoDisplay", "Hidden":
			if strings.EqualFold(strings.TrimSpace(v), "true") {
				hidden = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return App{}, false, err
	}

	return app, !hidden && app.Name != "" && app.Exec != "", nil
}

// fieldCodes are the desktop entry Exec field codes removed before the
// command is run.
var fieldCodes = strings.NewReplacer(
	"%%", "%",
	"%U", "", "%u", "",
	"%F", "", "%f", "",
	"%i", "", "%c", "", "%k", "",
	"%d", "", "%D", "",
	"%n", "", "%N", "",
	"%v", "", "%m", "", "%M", "",
	"%r", "", "%R", "",
)

// SanitizeExec strips field codes from an Exec value.
func SanitizeExec(exec string) string {
	return strings.TrimSpace(fieldCodes.Replace(exec))
}
