package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// configFileVersion is written as the first line of every saved file. Load
// skips that line without reading the version number.
const configFileVersion = 1

// Load reads key:value lines from r, matching
// xine_load_config/xine_config_update_num/xine_config_update_string: a
// key already registered gets its typed value updated directly and its
// callback fired (outside the store's mutex); an unregistered key is
// parked as a raw string, resolved the first time it is later
// registered. Lines starting with '#' and the leading
// CONFIG_FILE_VERSION line are comments.
func (s *Store) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "CONFIG_FILE_VERSION:") {
				continue
			}
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		s.loadOne(key, value)
	}
	return scanner.Err()
}

func (s *Store) loadOne(key, value string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = s.add(key)
		e.unknownValue = value
		e.hasUnknown = true
		s.mu.Unlock()
		return
	}
	if e.hasUnknown {
		e.unknownValue = value
		s.mu.Unlock()
		return
	}

	var cb Callback
	var snap Entry
	switch e.Type {
	case TypeBool:
		if n, err := strconv.Atoi(value); err == nil {
			e.BoolValue = n != 0
		} else if b, err := strconv.ParseBool(value); err == nil {
			e.BoolValue = b
		}
	case TypeInt, TypeRange:
		if n, err := strconv.Atoi(value); err == nil {
			e.IntValue = clamp(n, e.Type, e.RangeMin, e.RangeMax)
		}
	case TypeEnum:
		if n, err := strconv.Atoi(value); err == nil {
			e.EnumIndex = clampIndex(n, len(e.EnumValues))
		} else {
			for i, v := range e.EnumValues {
				if v == value {
					e.EnumIndex = i
					break
				}
			}
		}
	case TypeString, TypeFilename:
		e.StringValue = value
	default:
		e.unknownValue = value
		e.hasUnknown = true
	}
	snap, cb = e.Entry, e.callback
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

// Save writes every registered key to w in xine_save_config's format: a
// version header, then for each key a `# description` comment line (when
// the description is non-empty) and a `# type, default` comment line,
// followed by `key:value`, in registration order.
func (s *Store) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "CONFIG_FILE_VERSION:%d\n", configFileVersion)
	fmt.Fprintf(bw, "#\n# xine-engine config file\n#\n\n")

	for _, e := range s.Entries() {
		if e.Description != "" {
			fmt.Fprintf(bw, "# %s\n", e.Description)
		}
		switch e.Type {
		case TypeBool:
			fmt.Fprintf(bw, "# bool\n%s:%s\n\n", e.Key, strconv.FormatBool(e.BoolValue))
		case TypeInt:
			fmt.Fprintf(bw, "# numeric, default: %d\n%s:%d\n\n", e.IntDefault, e.Key, e.IntValue)
		case TypeRange:
			fmt.Fprintf(bw, "# [%d..%d], default: %d\n%s:%d\n\n", e.RangeMin, e.RangeMax, e.IntDefault, e.Key, e.IntValue)
		case TypeEnum:
			fmt.Fprintf(bw, "# {%s}, default: %s\n%s:%s\n\n", strings.Join(e.EnumValues, " "), enumAt(e.EnumValues, e.EnumIndexDefault), e.Key, enumAt(e.EnumValues, e.EnumIndex))
		case TypeString:
			fmt.Fprintf(bw, "# string, default: %s\n%s:%s\n\n", e.StringDefault, e.Key, e.StringValue)
		case TypeFilename:
			fmt.Fprintf(bw, "# filename, default: %s\n%s:%s\n\n", e.StringDefault, e.Key, e.StringValue)
		}
	}
	return bw.Flush()
}

func enumAt(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
