package mirror

import (
	"encoding/json"
	"fmt"
)

// ModRecord is an archive-installed mod as reported by the registry
// service. DirectoryName is its identity within one game root.
type ModRecord struct {
	DirectoryName string `json:"directory_name"`
	Name          string `json:"name"`
	Author        string `json:"author,omitempty"`
	Version       string `json:"version,omitempty"`
	Description   string `json:"description,omitempty"`
	Enabled       bool   `json:"enabled"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// SkinModRecord is a loose-folder skin mod. Its identity is the folder
// path, since skins may lack a registry-assigned name.
//
// Two registry revisions produced two isomorphic wire shapes: flat fields,
// and a nested "base" sub-record holding the shared mod fields. The flat
// shape is canonical; UnmarshalJSON accepts both and rejects records that
// mix them.
type SkinModRecord struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	Author        string `json:"author,omitempty"`
	Version       string `json:"version,omitempty"`
	Description   string `json:"description,omitempty"`
	Enabled       bool   `json:"enabled"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// skinModWire mirrors SkinModRecord for decoding without recursing into
// the custom unmarshaller.
type skinModWire struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	Author        string `json:"author"`
	Version       string `json:"version"`
	Description   string `json:"description"`
	Enabled       bool   `json:"enabled"`
	ThumbnailPath string `json:"thumbnail_path"`
}

func (s *SkinModRecord) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	base, nested := probe["base"]
	if !nested {
		var flat skinModWire
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		*s = SkinModRecord(flat)
		return nil
	}

	// Nested shape: shared fields live under "base"; only skin-specific
	// fields may appear beside it. Shared fields in both places means the
	// producer broke the contract, not that we should guess.
	for _, key := range []string{"path", "name", "author", "version", "description", "enabled"} {
		if _, ok := probe[key]; ok {
			return fmt.Errorf("skin mod record mixes nested base with top-level %q field", key)
		}
	}

	var baseFields skinModWire
	if err := json.Unmarshal(base, &baseFields); err != nil {
		return fmt.Errorf("invalid base sub-record: %w", err)
	}
	*s = SkinModRecord(baseFields)

	// thumbnail_path sits beside "base" in the nested shape.
	if raw, ok := probe["thumbnail_path"]; ok {
		if err := json.Unmarshal(raw, &s.ThumbnailPath); err != nil {
			return fmt.Errorf("invalid thumbnail_path: %w", err)
		}
	}

	return nil
}

// Kind distinguishes the two record families after normalization.
type Kind string

const (
	KindMod  Kind = "mod"
	KindSkin Kind = "skin"
)

// Entry is the canonical in-mirror representation of a mod or skin.
type Entry struct {
	Key           string // directory_name for mods, path for skins
	Kind          Kind
	Name          string
	Author        string
	Version       string
	Description   string
	Enabled       bool
	ThumbnailPath string
}

// Snapshot is one consistent listing of everything the registry knows.
type Snapshot struct {
	Entries []Entry
}

// clone returns a Snapshot with its own Entries backing array.
func (s Snapshot) clone() Snapshot {
	return Snapshot{Entries: append([]Entry(nil), s.Entries...)}
}

// Find returns the entry with the given key, if present.
func (s Snapshot) Find(key string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// ThumbnailPaths collects the non-empty thumbnail paths of the snapshot,
// in listing order.
func (s Snapshot) ThumbnailPaths() []string {
	var paths []string
	for _, e := range s.Entries {
		if e.ThumbnailPath != "" {
			paths = append(paths, e.ThumbnailPath)
		}
	}
	return paths
}

// DataIntegrityError reports a registry listing that violates its own
// contract, e.g. two records sharing an identity key.
type DataIntegrityError struct {
	Key string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("registry listing contains duplicate identity %q", e.Key)
}

// buildSnapshot normalizes the two listings into one snapshot, surfacing
// duplicate identity keys instead of deduplicating them.
func buildSnapshot(mods []ModRecord, skins []SkinModRecord) (Snapshot, error) {
	entries := make([]Entry, 0, len(mods)+len(skins))
	seen := make(map[string]struct{}, len(mods)+len(skins))

	add := func(e Entry) error {
		if _, dup := seen[e.Key]; dup {
			return &DataIntegrityError{Key: e.Key}
		}
		seen[e.Key] = struct{}{}
		entries = append(entries, e)
		return nil
	}

	for _, m := range mods {
		err := add(Entry{
			Key:           m.DirectoryName,
			Kind:          KindMod,
			Name:          m.Name,
			Author:        m.Author,
			Version:       m.Version,
			Description:   m.Description,
			Enabled:       m.Enabled,
			ThumbnailPath: m.ThumbnailPath,
		})
		if err != nil {
			return Snapshot{}, err
		}
	}

	for _, s := range skins {
		err := add(Entry{
			Key:           s.Path,
			Kind:          KindSkin,
			Name:          s.Name,
			Author:        s.Author,
			Version:       s.Version,
			Description:   s.Description,
			Enabled:       s.Enabled,
			ThumbnailPath: s.ThumbnailPath,
		})
		if err != nil {
			return Snapshot{}, err
		}
	}

	return Snapshot{Entries: entries}, nil
}
