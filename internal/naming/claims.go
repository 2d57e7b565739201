package naming

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Claims is the run-scoped set of reserved output names. Each target folder is
// listed once, the first time a name in it is claimed; later claims only see
// that snapshot plus names claimed earlier in the run.
type Claims struct {
	mu     sync.Mutex
	listed map[string]bool
	taken  map[string]struct{}
}

// NewClaims returns an empty claim set for one run.
func NewClaims() *Claims {
	return &Claims{
		listed: make(map[string]bool),
		taken:  make(map[string]struct{}),
	}
}

// Claim reserves name in dir, appending _1, _2, ... before the extension
// until the name is free. It returns the reserved name.
func (c *Claims) Claim(dir, name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir = filepath.Clean(dir)
	c.snapshotLocked(dir)

	stem, ext := splitExt(name)
	candidate := name
	for n := 1; c.takenLocked(dir, candidate); n++ {
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
	c.taken[claimKey(dir, candidate)] = struct{}{}
	return candidate
}

func (c *Claims) takenLocked(dir, name string) bool {
	_, ok := c.taken[claimKey(dir, name)]
	return ok
}

func (c *Claims) snapshotLocked(dir string) {
	if c.listed[dir] {
		return
	}
	c.listed[dir] = true
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Missing folders are created on first write; nothing to collide with.
		return
	}
	for _, entry := range entries {
		c.taken[claimKey(dir, entry.Name())] = struct{}{}
	}
}

func claimKey(dir, name string) string {
	return dir + string(filepath.Separator) + name
}

// splitExt splits a name into stem and extension, treating subtitle sidecars
// such as "movie.vie.srt" as stem "movie.vie" and extension ".srt".
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
