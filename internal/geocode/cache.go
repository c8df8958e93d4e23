// Package geocode resolves normalized injury-location addresses to map
// coordinates through the AMap REST API, backed by a CSV cache file.
package geocode

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Coordinate is a GCJ-02 longitude/latitude pair as returned by AMap.
type Coordinate struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Cache maps normalized addresses to coordinates.
type Cache map[string]Coordinate

const utf8BOM = "\ufeff"

var cacheHeader = []string{"address", "lng", "lat"}

// LoadCache reads a cache file. A missing file yields an empty cache;
// rows without an address or with unparsable coordinates are skipped.
func LoadCache(path string) (Cache, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("geocode cache not found, creating new cache", "path", path)
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	defer f.Close()

	c, err := readCache(f)
	if err != nil {
		return nil, fmt.Errorf("read geocode cache %s: %w", path, err)
	}
	slog.Info("geocode cache loaded", "path", path, "entries", len(c))
	return c, nil
}

func readCache(r io.Reader) (Cache, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	c := Cache{}
	if len(records) == 0 {
		return c, nil
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.TrimSpace(h)] = i
	}
	ai, aok := cols["address"]
	li, lok := cols["lng"]
	ti, tok := cols["lat"]
	if !aok || !lok || !tok {
		return c, nil
	}

	for _, rec := range records[1:] {
		if ai >= len(rec) || li >= len(rec) || ti >= len(rec) {
			continue
		}
		addr := strings.TrimSpace(rec[ai])
		lng, lerr := strconv.ParseFloat(strings.TrimSpace(rec[li]), 64)
		lat, terr := strconv.ParseFloat(strings.TrimSpace(rec[ti]), 64)
		if addr == "" || lerr != nil || terr != nil {
			continue
		}
		c[addr] = Coordinate{Lng: lng, Lat: lat}
	}
	return c, nil
}

// SaveCache rewrites the cache file, entries sorted by address. The file is
// replaced atomically so an interrupted save never leaves a truncated cache.
func SaveCache(path string, c Cache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("geocode cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".geocache-*.csv")
	if err != nil {
		return fmt.Errorf("geocode cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeCache(tmp, c); err != nil {
		tmp.Close()
		return fmt.Errorf("write geocode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace geocode cache: %w", err)
	}

	slog.Info("geocode cache saved", "path", path, "entries", len(c))
	return nil
}

func writeCache(w io.Writer, c Cache) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	if err := cw.Write(cacheHeader); err != nil {
		return err
	}
	for _, k := range keys {
		coord := c[k]
		rec := []string{
			k,
			strconv.FormatFloat(coord.Lng, 'f', -1, 64),
			strconv.FormatFloat(coord.Lat, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
