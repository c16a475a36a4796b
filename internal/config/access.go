package config

// Lookup returns a snapshot of key's current entry, or ok=false if it is
// unregistered (including keys parked as CONFIG_TYPE_UNKNOWN by Load but
// never registered).
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.hasUnknown {
		return Entry{}, false
	}
	return e.Entry, true
}

// SetBool sets a registered bool key's value and fires its callback, if
// any, outside the store's mutex. Returns false if key is not registered
// as a bool.
func (s *Store) SetBool(key string, v bool) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.Type != TypeBool {
		s.mu.Unlock()
		return false
	}
	e.BoolValue = v
	snap, cb := e.Entry, e.callback
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
	return true
}

// SetInt sets a registered int or range key's value (clamped to
// [RangeMin, RangeMax] for range keys) and fires its callback outside
// the store's mutex.
func (s *Store) SetInt(key string, v int) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || (e.Type != TypeInt && e.Type != TypeRange) {
		s.mu.Unlock()
		return false
	}
	e.IntValue = clamp(v, e.Type, e.RangeMin, e.RangeMax)
	snap, cb := e.Entry, e.callback
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
	return true
}

// SetEnumIndex sets a registered enum key's selected index (clamped to a
// valid index) and fires its callback outside the store's mutex.
func (s *Store) SetEnumIndex(key string, index int) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.Type != TypeEnum {
		s.mu.Unlock()
		return false
	}
	e.EnumIndex = clampIndex(index, len(e.EnumValues))
	snap, cb := e.Entry, e.callback
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
	return true
}

// SetString sets a registered string or filename key's value and fires
// its callback outside the store's mutex.
func (s *Store) SetString(key, v string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || (e.Type != TypeString && e.Type != TypeFilename) {
		s.mu.Unlock()
		return false
	}
	e.StringValue = v
	snap, cb := e.Entry, e.callback
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
	return true
}

// Entries returns a snapshot of every registered key in registration
// order, for serialization (Save) or UI listing.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for _, key := range s.order {
		e := s.entries[key]
		if e.hasUnknown {
			continue
		}
		out = append(out, e.Entry)
	}
	return out
}
