package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/safego"
)

const ModuleName = "prompt"

// Template categories under the prompt root.
const (
	CategoryCharacter = "character"
	CategorySystem    = "system"
	CategoryTask      = "task"
	CategoryWorldview = "worldview"
)

var slotPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Library loads markdown templates from {root}/{category}/{name}.md and
// renders {slot} placeholders. Loaded templates are cached by
// (category, name); a filesystem watcher invalidates edited files.
type Library struct {
	root string

	mu    sync.RWMutex
	cache map[string]string

	watcher *fsnotify.Watcher
}

// NewLibrary creates a library rooted at dir.
func NewLibrary(root string) *Library {
	return &Library{root: root, cache: make(map[string]string)}
}

func cacheKey(category, name string) string {
	return category + "/" + name
}

// Load returns the raw template text, reading from disk on first use.
func (l *Library) Load(category, name string) (string, error) {
	key := cacheKey(category, name)
	l.mu.RLock()
	text, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return text, nil
	}

	path := filepath.Join(l.root, category, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: template %s", errno.ErrNotFound, key)
		}
		return "", err
	}
	text = string(data)

	l.mu.Lock()
	l.cache[key] = text
	l.mu.Unlock()
	return text, nil
}

// Render loads the template and substitutes every {slot}. Slots absent
// from the map render as empty strings.
func (l *Library) Render(category, name string, slots map[string]string) (string, error) {
	text, err := l.Load(category, name)
	if err != nil {
		return "", err
	}
	return slotPattern.ReplaceAllStringFunc(text, func(match string) string {
		slot := strings.Trim(match, "{}")
		return slots[slot]
	}), nil
}

// Reload drops a single cached template so the next Load rereads disk.
func (l *Library) Reload(category, name string) {
	l.mu.Lock()
	delete(l.cache, cacheKey(category, name))
	l.mu.Unlock()
}

// Watch starts a filesystem watcher over the category directories and
// invalidates cache entries when their files change. It returns after
// starting the background loop; cancel the context to stop it.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher

	for _, category := range []string{CategoryCharacter, CategorySystem, CategoryTask, CategoryWorldview} {
		dir := filepath.Join(l.root, category)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.WarnX(ModuleName, "[Library] cannot watch %s: %v", dir, err)
		}
	}

	safego.Go(ctx, func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				l.invalidatePath(ev.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WarnX(ModuleName, "[Library] watcher error: %v", err)
			}
		}
	})
	return nil
}

func (l *Library) invalidatePath(path string) {
	if filepath.Ext(path) != ".md" {
		return
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return
	}
	key := strings.TrimSuffix(filepath.ToSlash(rel), ".md")
	l.mu.Lock()
	_, cached := l.cache[key]
	delete(l.cache, key)
	l.mu.Unlock()
	if cached {
		logger.InfoX(ModuleName, "[Library] template %s reloaded after change", key)
	}
}
