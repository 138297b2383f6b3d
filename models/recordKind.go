package models

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/go-yaml/yaml"
)

//go:embed recordKinds.yaml
var recordKindsYAML []byte

// KindField is one editable column of a record kind, in display order.
type KindField struct {
	Column string `yaml:"column" json:"column"`
	Label  string `yaml:"label" json:"label"`
}

// RecordKind is the fixed per-kind schema of a DocumentRecord.
type RecordKind struct {
	Name        string      `yaml:"-" json:"name"`
	EntityLabel string      `yaml:"entityLabel" json:"entityLabel"`
	ExpiryField string      `yaml:"expiryField" json:"expiryField,omitempty"`
	Fields      []KindField `yaml:"fields" json:"fields"`
}

type recordKindFile struct {
	Kinds map[string]*RecordKind `yaml:"kinds"`
}

var (
	recordKinds     map[string]*RecordKind
	recordKindsErr  error
	recordKindsOnce sync.Once
)

// ParseRecordKinds validates a kinds document; every column must be a known DocumentRecord column.
func ParseRecordKinds(data []byte) (map[string]*RecordKind, error) {
	var file recordKindFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("no record kinds defined")
	}
	for name, kind := range file.Kinds {
		kind.Name = name
		if kind.EntityLabel == "" {
			kind.EntityLabel = name
		}
		seen := make(map[string]bool, len(kind.Fields))
		hasName := false
		for _, f := range kind.Fields {
			if !IsDocumentColumn(f.Column) {
				return nil, fmt.Errorf("kind %s: unknown column %q", name, f.Column)
			}
			if seen[f.Column] {
				return nil, fmt.Errorf("kind %s: duplicate column %q", name, f.Column)
			}
			seen[f.Column] = true
			if f.Column == ColumnName {
				hasName = true
			}
		}
		if !hasName {
			return nil, fmt.Errorf("kind %s: name column is required", name)
		}
		if kind.ExpiryField != "" && !seen[kind.ExpiryField] {
			return nil, fmt.Errorf("kind %s: expiry field %q is not one of its fields", name, kind.ExpiryField)
		}
	}
	return file.Kinds, nil
}

func loadRecordKinds() (map[string]*RecordKind, error) {
	recordKindsOnce.Do(func() {
		recordKinds, recordKindsErr = ParseRecordKinds(recordKindsYAML)
	})
	return recordKinds, recordKindsErr
}

// GetRecordKind returns the schema for a kind name.
func GetRecordKind(name string) (*RecordKind, error) {
	kinds, err := loadRecordKinds()
	if err != nil {
		return nil, err
	}
	kind, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", name)
	}
	return kind, nil
}

// ListRecordKinds returns every kind sorted by name.
func ListRecordKinds() ([]*RecordKind, error) {
	kinds, err := loadRecordKinds()
	if err != nil {
		return nil, err
	}
	list := make([]*RecordKind, 0, len(kinds))
	for _, k := range kinds {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (k *RecordKind) HasExpiry() bool {
	return k.ExpiryField != ""
}
