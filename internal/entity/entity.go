// Package entity is the static registry of business entities: where each one
// is stored, which columns scope its visibility, and which Go type its rows
// decode into.
package entity

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Well-known column names.
const (
	ColumnID        = "id"
	ColumnCreatedBy = "created_by"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// Descriptor is the scoping metadata of one entity.
type Descriptor struct {
	// Name doubles as the permission resource, e.g. "leads".
	Name             string
	Table            storage.Table
	SoftDeleteColumn string
	OwnerColumn      string
	DepartmentColumn string
	CreatedByColumn  string
	// Timestamps marks entities carrying created_at/updated_at.
	Timestamps bool
	// Columns lists every column of the table. Define fills it from the row
	// type's db tags.
	Columns []string
}

// HasColumn reports whether col belongs to the entity.
func (d Descriptor) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Entity binds a Descriptor to its row type.
type Entity[T any] struct {
	Descriptor
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Descriptor{}
)

// Define registers an entity. It panics on duplicate names or descriptors that
// reference columns the row type does not have, so mistakes surface at start.
func Define[T any](d Descriptor) Entity[T] {
	if len(d.Columns) == 0 {
		d.Columns = columnsOf(reflect.TypeOf((*T)(nil)).Elem())
	}
	for _, col := range []string{d.SoftDeleteColumn, d.OwnerColumn, d.DepartmentColumn, d.CreatedByColumn} {
		if col != "" && !d.HasColumn(col) {
			panic(fmt.Sprintf("entity: %s declares unknown column %q", d.Name, col))
		}
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[d.Name]; dup {
		panic(fmt.Sprintf("entity: %s registered twice", d.Name))
	}
	registry[d.Name] = d
	return Entity[T]{Descriptor: d}
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// Names lists every registered entity, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode converts a stored record into the entity's row type.
func (e Entity[T]) Decode(rec storage.Record) (T, error) {
	var out T
	if err := DecodeInto(rec, &out); err != nil {
		return out, fmt.Errorf("entity: decode %s: %w", e.Name, err)
	}
	return out, nil
}

// DecodeInto converts rec into the struct pointed to by out using its db
// tags. It serves ad hoc result rows such as aggregates.
func DecodeInto(rec storage.Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "db",
		Result:     out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(uuidHook),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(rec))
}

// DecodeAll converts a batch of records.
func (e Entity[T]) DecodeAll(recs []storage.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := e.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var uuidType = reflect.TypeOf(uuid.UUID{})

// uuidHook accepts textual and raw driver representations of uuids.
func uuidHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != uuidType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return uuid.Parse(v)
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		return uuid.FromBytes(v)
	}
	return data, nil
}

func columnsOf(t reflect.Type) []string {
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}
