package dice

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed maps/*.json
var mapFiles embed.FS

// Map is a compiled map: its lands and their border relation.
type Map struct {
	Name        string
	DisplayName string
	Lands       []Land
	Adjacency   Adjacency
}

type mapSource struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Lands       []Emoji    `json:"lands"`
	Borders     [][2]Emoji `json:"borders"`
}

var (
	mapsOnce     sync.Once
	compiledMaps map[string]*Map
	mapsErr      error
)

func loadMaps() {
	compiledMaps = make(map[string]*Map)
	entries, err := mapFiles.ReadDir("maps")
	if err != nil {
		mapsErr = fmt.Errorf("reading embedded maps: %w", err)
		return
	}
	for _, e := range entries {
		data, err := mapFiles.ReadFile(path.Join("maps", e.Name()))
		if err != nil {
			mapsErr = fmt.Errorf("reading map %s: %w", e.Name(), err)
			return
		}
		m, err := ParseMap(data)
		if err != nil {
			mapsErr = fmt.Errorf("map %s: %w", e.Name(), err)
			return
		}
		compiledMaps[m.Name] = m
	}
}

// ParseMap compiles a map from its JSON source.
func ParseMap(data []byte) (*Map, error) {
	var src mapSource
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("decoding map: %w", err)
	}
	if src.Name == "" {
		return nil, fmt.Errorf("map has no name")
	}
	adj, err := CompileAdjacency(src.Lands, src.Borders)
	if err != nil {
		return nil, err
	}
	lands := make([]Land, len(src.Lands))
	for i, e := range src.Lands {
		lands[i] = Land{Emoji: e, Color: Neutral, Points: 1}
	}
	display := src.DisplayName
	if display == "" {
		display = src.Name
	}
	return &Map{Name: src.Name, DisplayName: display, Lands: lands, Adjacency: adj}, nil
}

// LoadMap returns the compiled map with the given name. The returned map is
// shared and must not be mutated.
func LoadMap(name string) (*Map, error) {
	mapsOnce.Do(loadMaps)
	if mapsErr != nil {
		return nil, mapsErr
	}
	m, ok := compiledMaps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMap, name)
	}
	return m, nil
}

// MapNames lists the embedded maps.
func MapNames() []string {
	mapsOnce.Do(loadMaps)
	names := make([]string, 0, len(compiledMaps))
	for n := range compiledMaps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ReconcileLands returns stored lands unchanged when they cover the same
// emoji set as the map. Otherwise the map's land list is used, copying
// color and points from stored lands that still exist.
func ReconcileLands(m *Map, stored []Land) ([]Land, bool) {
	if sameEmojis(m.Lands, stored) {
		return stored, false
	}
	byEmoji := make(map[Emoji]Land, len(stored))
	for _, l := range stored {
		byEmoji[l.Emoji] = l
	}
	out := make([]Land, len(m.Lands))
	for i, l := range m.Lands {
		if s, ok := byEmoji[l.Emoji]; ok {
			out[i] = s
		} else {
			out[i] = l
		}
	}
	return out, true
}

func sameEmojis(a, b []Land) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(ls []Land) string {
		es := make([]string, len(ls))
		for i, l := range ls {
			es[i] = string(l.Emoji)
		}
		sort.Strings(es)
		return strings.Join(es, "")
	}
	return key(a) == key(b)
}
