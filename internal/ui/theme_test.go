package ui

import "testing"

func TestThemeLookups(t *testing.T) {
	th := defaultTheme()

	if got := th.StatusColor("  FAILED "); got != th.StatusColors["failed"] {
		t.Fatalf("StatusColor = %q, want %q", got, th.StatusColors["failed"])
	}
	if got := th.StatusColor("BUILDED"); got != th.StatusColors["builded"] {
		t.Fatalf("StatusColor(BUILDED) = %q, want %q", got, th.StatusColors["builded"])
	}
	if got := th.StatusColor("unknown"); got != th.Muted {
		t.Fatalf("StatusColor unknown = %q, want %q", got, th.Muted)
	}

	if got := th.LevelColor("error"); got != th.Danger {
		t.Fatalf("LevelColor(error) = %q, want %q", got, th.Danger)
	}
	if got := th.LevelColor(""); got != th.Muted {
		t.Fatalf("LevelColor(empty) = %q, want %q", got, th.Muted)
	}
}

func TestThemesCoverEveryStatus(t *testing.T) {
	statuses := []string{"pending", "running", "completed", "failed", "cancelled", "building", "builded", "buildfailed"}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, s := range statuses {
			if th.StatusColors[s] == "" {
				t.Fatalf("theme %s has no color for %s", name, s)
			}
		}
	}
}

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Dracula" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Dracula Slate]", names)
	}
	names[0] = "mutated"
	if ThemeNames()[0] != "Dracula" {
		t.Fatalf("ThemeNames() exposes internal order")
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Dracula"); got != "Slate" {
		t.Fatalf("NextTheme(Dracula) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("Unknown"); got != "Dracula" {
		t.Fatalf("NextTheme(Unknown) = %q, want Dracula", got)
	}
}

func TestGetTheme(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q, want Slate", got)
	}
	if got := GetTheme("Unknown").Name; got != "Dracula" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Dracula (fallback)", got)
	}
}
