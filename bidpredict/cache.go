package bidpredict

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// scoreCache memoizes text scores per (field, cleaned text, model version).
// The memory layer always runs; the disk layer is optional and survives
// restarts. Scores are deterministic for a frozen snapshot, so entries never
// expire; a version change changes every key.
type scoreCache struct {
	mu      sync.RWMutex
	m       map[string]float64
	dir     string
	version string
}

func newScoreCache(dir, version string) *scoreCache {
	return &scoreCache{m: make(map[string]float64), dir: dir, version: version}
}

func (c *scoreCache) key(field, text string) string {
	h := sha1.Sum([]byte(c.version + "|" + field + "|" + text))
	return hex.EncodeToString(h[:])
}

func (c *scoreCache) get(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *scoreCache) put(key string, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

func (c *scoreCache) load(key string) (float64, bool) {
	if c.dir == "" {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, key+".bin"))
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), true
}

func (c *scoreCache) save(key string, v float64) error {
	if c.dir == "" {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return os.WriteFile(filepath.Join(c.dir, key+".bin"), buf[:], 0o644)
}
