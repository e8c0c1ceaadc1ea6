package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultSourceOffsetMs is persisted the first time a playback source is seen.
const DefaultSourceOffsetMs int64 = -200

// SourceID names a playback source, e.g. an MPRIS bus name.
type SourceID string

type offsetFile struct {
	ManualOffsetMs int64              `yaml:"manual_offset_ms"`
	Sources        map[SourceID]int64 `yaml:"source_offsets_ms"`
}

// Offsets is the process-wide calibration store. An empty path keeps it in memory.
type Offsets struct {
	path string
	mu   sync.Mutex
	data offsetFile
}

func NewMemory() *Offsets {
	return &Offsets{data: offsetFile{Sources: make(map[SourceID]int64)}}
}

// Load reads the offsets file at path; a missing file yields defaults.
func Load(path string) (*Offsets, error) {
	o := NewMemory()
	o.path = path

	if path == "" {
		return o, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return o, nil
		}
		return nil, fmt.Errorf("failed to read offsets file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &o.data); err != nil {
		return nil, fmt.Errorf("failed to parse offsets file %s: %w", path, err)
	}
	if o.data.Sources == nil {
		o.data.Sources = make(map[SourceID]int64)
	}

	return o, nil
}

func (o *Offsets) Path() string { return o.path }

func (o *Offsets) Manual() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.data.ManualOffsetMs
}

func (o *Offsets) SetManual(ms int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.ManualOffsetMs = ms
	return o.saveLocked()
}

// AdjustManual shifts the manual offset by deltaMs and returns the new value.
func (o *Offsets) AdjustManual(deltaMs int64) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.ManualOffsetMs += deltaMs
	return o.data.ManualOffsetMs, o.saveLocked()
}

// SourceOffset returns the stored offset for src, persisting the default on first access.
func (o *Offsets) SourceOffset(src SourceID) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if value, ok := o.data.Sources[src]; ok {
		return value
	}

	o.data.Sources[src] = DefaultSourceOffsetMs
	// the default is still used when it cannot be persisted
	_ = o.saveLocked()
	return DefaultSourceOffsetMs
}

func (o *Offsets) SetSourceOffset(src SourceID, ms int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.Sources[src] = ms
	return o.saveLocked()
}

// Total is the offset added to a playback position reported by src.
func (o *Offsets) Total(src SourceID) int64 {
	return o.Manual() + o.SourceOffset(src)
}

// Sources lists known sources in name order.
func (o *Offsets) Sources() []SourceID {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := make([]SourceID, 0, len(o.data.Sources))
	for src := range o.data.Sources {
		result = append(result, src)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (o *Offsets) saveLocked() error {
	if o.path == "" {
		return nil
	}

	raw, err := yaml.Marshal(&o.data)
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(o.path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create offsets directory: %w", err)
	}

	// write to temp file first, then rename for atomicity
	tmpPath := o.path + ".tmp"
	err = os.WriteFile(tmpPath, raw, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write offsets: %w", err)
	}

	err = os.Rename(tmpPath, o.path)
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write offsets: %w", err)
	}

	return nil
}
