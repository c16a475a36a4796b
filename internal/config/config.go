// Package config implements the typed configuration store described in
// spec.md §6: bool/int/range/enum/string/filename keys with a
// description, help text, experience level, and an optional
// change-callback, plus a `key:value`-per-line text serialization.
//
// Grounded directly on original_source/src/xine-engine/configfile.c's
// xine_config_register_*/xine_config_update_*/xine_load_config/
// xine_save_config. Uses only the standard library (bufio, strconv): this
// is a spec-mandated bespoke wire format, not a generic serialization
// concern any example repo's library (yaml.v3, protobuf, etc.) actually
// produces — see DESIGN.md.
package config

import "sync"

// Type is a registered key's value kind.
type Type int

const (
	TypeBool Type = iota
	TypeInt
	TypeRange
	TypeEnum
	TypeString
	TypeFilename
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "numeric"
	case TypeRange:
		return "range"
	case TypeEnum:
		return "enum"
	case TypeString:
		return "string"
	case TypeFilename:
		return "filename"
	default:
		return "unknown"
	}
}

// Callback fires after a registered key's value changes, outside the
// store's mutex, matching configfile.c's "changed_cb, outside the
// config_lock" contract.
type Callback func(entry Entry)

// Entry is a point-in-time, read-only snapshot of one registered key,
// returned from Lookup and Entries and passed to callbacks.
type Entry struct {
	Key         string
	Type        Type
	Description string
	Help        string
	ExpLevel    int

	BoolValue bool

	IntValue, IntDefault, RangeMin, RangeMax int

	EnumValues       []string
	EnumIndex        int
	EnumIndexDefault int

	StringValue, StringDefault string
}

type entry struct {
	Entry
	boolDefault bool
	callback    Callback

	// unknownValue holds a value read from a config file before this key
	// was registered; the first Register* call for this key parses it
	// into the typed value instead of the caller's default, mirroring
	// configfile.c's CONFIG_TYPE_UNKNOWN placeholder entries.
	unknownValue string
	hasUnknown   bool
}

// Store is the config store of spec.md's ambient §2.3. One instance is
// normally shared by every component of an engine.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) add(key string) *entry {
	e := &entry{Entry: Entry{Key: key}}
	s.entries[key] = e
	s.order = append(s.order, key)
	return e
}
