package config

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterBool("gui.fullscreen", false, "start in fullscreen", "", 10, nil)
	if !s.SetBool("gui.fullscreen", true) {
		t.Fatal("SetBool returned false")
	}
	e, ok := s.Lookup("gui.fullscreen")
	if !ok || !e.BoolValue {
		t.Fatalf("Lookup = (%+v, %v), want BoolValue=true", e, ok)
	}
}

func TestReregisterSameTypePreservesValue(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterInt("audio.volume", 50, "", "", 0, nil)
	s.SetInt("audio.volume", 80)

	v := s.RegisterInt("audio.volume", 50, "changed description", "", 0, nil)
	if v != 80 {
		t.Fatalf("RegisterInt on re-registration = %d, want 80 preserved", v)
	}
	e, _ := s.Lookup("audio.volume")
	if e.Description == "changed description" {
		t.Fatal("re-registration with same type should not overwrite metadata")
	}
}

func TestRegisterRangeClamps(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterRange("video.zoom", 100, 50, 150, "", "", 0, nil)
	s.SetInt("video.zoom", 500)
	e, _ := s.Lookup("video.zoom")
	if e.IntValue != 150 {
		t.Fatalf("IntValue = %d, want clamped to 150", e.IntValue)
	}
}

func TestRegisterEnumByIndexAndSetClamped(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterEnum("video.aspect", 0, []string{"auto", "4:3", "16:9"}, "", "", 0, nil)
	s.SetEnumIndex("video.aspect", 2)
	e, _ := s.Lookup("video.aspect")
	if e.EnumIndex != 2 {
		t.Fatalf("EnumIndex = %d, want 2", e.EnumIndex)
	}
	s.SetEnumIndex("video.aspect", 99)
	e, _ = s.Lookup("video.aspect")
	if e.EnumIndex != 2 {
		t.Fatalf("EnumIndex after out-of-range Set = %d, want clamped to 2", e.EnumIndex)
	}
}

func TestUnknownValueParkedUntilRegistered(t *testing.T) {
	t.Parallel()
	s := New()
	s.loadOne("video.deinterlace", "true")

	if _, ok := s.Lookup("video.deinterlace"); ok {
		t.Fatal("Lookup should not see an unregistered/unknown key")
	}

	v := s.RegisterBool("video.deinterlace", false, "", "", 0, nil)
	if !v {
		t.Fatalf("RegisterBool after unknown load = %v, want true (parsed from parked value)", v)
	}
}

func TestCallbackFiresOutsideLock(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterBool("k", false, "", "", 0, nil)

	called := false
	s.RegisterString("other", "x", "", "", 0, func(Entry) {
		called = true
		// Must not deadlock: callback runs outside the store's mutex.
		s.SetBool("k", true)
	})
	s.SetString("other", "y")

	if !called {
		t.Fatal("callback never fired")
	}
	e, _ := s.Lookup("k")
	if !e.BoolValue {
		t.Fatal("callback's nested SetBool did not take effect")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterBool("a.flag", false, "a flag", "", 0, nil)
	s.SetBool("a.flag", true)
	s.RegisterRange("a.range", 5, 0, 10, "a range", "", 0, nil)
	s.SetInt("a.range", 7)
	s.RegisterEnum("a.enum", 0, []string{"x", "y", "z"}, "an enum", "", 0, nil)
	s.SetEnumIndex("a.enum", 2)
	s.RegisterString("a.str", "def", "a string", "", 0, nil)
	s.SetString("a.str", "hello")

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "CONFIG_FILE_VERSION:1\n") {
		t.Fatalf("Save output missing version header: %q", buf.String())
	}

	s2 := New()
	if err := s2.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s2.RegisterBool("a.flag", false, "", "", 0, nil)
	s2.RegisterRange("a.range", 5, 0, 10, "", "", 0, nil)
	s2.RegisterEnum("a.enum", 0, []string{"x", "y", "z"}, "", "", 0, nil)
	s2.RegisterString("a.str", "def", "", "", 0, nil)

	for key, want := range map[string]any{
		"a.flag": true, "a.range": 7, "a.enum": 2, "a.str": "hello",
	} {
		e, ok := s2.Lookup(key)
		if !ok {
			t.Fatalf("%s: not found after load+register", key)
		}
		var got any
		switch e.Type {
		case TypeBool:
			got = e.BoolValue
		case TypeRange:
			got = e.IntValue
		case TypeEnum:
			got = e.EnumIndex
		case TypeString:
			got = e.StringValue
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}
}

func TestEntriesPreservesRegistrationOrder(t *testing.T) {
	t.Parallel()
	s := New()
	s.RegisterBool("z", false, "", "", 0, nil)
	s.RegisterBool("a", false, "", "", 0, nil)
	s.RegisterBool("m", false, "", "", 0, nil)

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}
	got := []string{entries[0].Key, entries[1].Key, entries[2].Key}
	want := []string{"z", "a", "m"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Entries() order = %v, want %v", got, want)
		}
	}
}
