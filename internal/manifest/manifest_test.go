package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sergeknystautas/fab/internal/vcs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPath(t *testing.T) {
	seed := filepath.Join("work", "app")
	tests := []struct {
		name string
		want string
	}{
		{"", filepath.Join(seed, ".fab", "manifest.json")},
		{"default", filepath.Join(seed, ".fab", "manifest.json")},
		{"ci", filepath.Join(seed, ".fab", "ci_manifest.json")},
	}
	for _, tt := range tests {
		if got := Path(seed, tt.name); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":              ".",
		".":             ".",
		"./libs/a":      "libs/a",
		`libs\a`:        "libs/a",
		"libs//a/":      "libs/a",
		"../app":        "../app",
		"a/../b":        "b",
		`..\app\nested`: "../app/nested",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	seed := t.TempDir()
	m := &Manifest{
		Dependencies: map[string]Dependency{
			"libs/free":   FreeDependency(vcs.Git, "../free.git"),
			"libs/locked": LockedDependency(vcs.Hg, "https://hg.example.com/locked", "stable"),
			"libs/pinned": PinnedDependency(vcs.Git, "git@example.com:org/pinned.git", "abc123"),
		},
		RootDirectory:    "..",
		SeedPathFromRoot: "app",
	}
	if err := Save(Path(seed, ""), m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, warnings, err := Load(seed, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, m)
	}
}

func TestSaveWritesCurrentFieldNames(t *testing.T) {
	seed := t.TempDir()
	m := New()
	m.Dependencies["x"] = LockedDependency(vcs.Git, "/srv/x", "L")
	if err := Save(Path(seed, ""), m); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(Path(seed, ""))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"seedPathFromRoot"`, `"rootDirectory"`, `"lockBranch": "L"`, `"repoType": "git"`} {
		if !strings.Contains(s, want) {
			t.Errorf("saved manifest missing %s:\n%s", want, s)
		}
	}
	for _, unwanted := range []string{"mainPathFromRoot", "pinRevision"} {
		if strings.Contains(s, unwanted) {
			t.Errorf("saved manifest contains %s:\n%s", unwanted, s)
		}
	}
}

func TestLoadLegacyFields(t *testing.T) {
	seed := t.TempDir()
	writeFile(t, Path(seed, ""), `{
  "dependencies": {"libs\\a": {"origin": "../a.git", "repoType": "git"}},
  "rootDirectory": "",
  "mainPathFromRoot": "./app"
}`)
	m, _, err := Load(seed, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.SeedPathFromRoot != "app" {
		t.Errorf("SeedPathFromRoot = %q, want app", m.SeedPathFromRoot)
	}
	if m.RootDirectory != "." {
		t.Errorf("RootDirectory = %q, want .", m.RootDirectory)
	}
	if _, ok := m.Dependencies["libs/a"]; !ok {
		t.Errorf("dependency key not normalized: %v", m.RepoPaths())
	}
}

func TestLoadPrefersCurrentOverLegacy(t *testing.T) {
	seed := t.TempDir()
	writeFile(t, Path(seed, ""), `{"dependencies": {}, "rootDirectory": "..", "seedPathFromRoot": "new", "mainPathFromRoot": "old"}`)
	m, _, err := Load(seed, "")
	if err != nil {
		t.Fatal(err)
	}
	if m.SeedPathFromRoot != "new" {
		t.Errorf("SeedPathFromRoot = %q, want new", m.SeedPathFromRoot)
	}
}

func TestLoadMissingField(t *testing.T) {
	tests := []struct {
		doc   string
		field string
	}{
		{`{"rootDirectory": ".", "seedPathFromRoot": "."}`, "dependencies"},
		{`{"dependencies": {}, "seedPathFromRoot": "."}`, "rootDirectory"},
		{`{"dependencies": {}, "rootDirectory": "."}`, "seedPathFromRoot"},
	}
	for _, tt := range tests {
		_, _, err := Parse("manifest.json", []byte(tt.doc))
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("Parse(%s) error = %v, want ErrMissingField", tt.doc, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.field) {
			t.Errorf("error %q does not name field %s", err, tt.field)
		}
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	_, _, err := Parse("manifest.json", []byte("{\n  \"dependencies\": {,\n}"))
	if !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("error = %v, want ErrInvalidManifest", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q lacks line number", err)
	}
}

func TestLoadNotFoundListsVariants(t *testing.T) {
	seed := t.TempDir()
	writeFile(t, Path(seed, ""), `{}`)
	writeFile(t, Path(seed, "ci"), `{}`)

	_, _, err := Load(seed, "release")
	if !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("error = %v, want ErrManifestNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error %T is not *NotFoundError", err)
	}
	if want := []string{"ci", "default"}; !reflect.DeepEqual(nf.Variants, want) {
		t.Errorf("Variants = %v, want %v", nf.Variants, want)
	}
}

func TestLoadDropsUnsupportedRepoType(t *testing.T) {
	m, warnings, err := Parse("m", []byte(`{
  "dependencies": {
    "a": {"origin": "/srv/a", "repoType": "git"},
    "b": {"origin": "/srv/b", "repoType": "svn"},
    "c": {"origin": "/srv/c"}
  },
  "rootDirectory": ".",
  "seedPathFromRoot": "."
}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.RepoPaths(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("RepoPaths = %v, want [a]", got)
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want 2", warnings)
	}
}

func TestPinWinsOverLock(t *testing.T) {
	m, warnings, err := Parse("m", []byte(`{
  "dependencies": {"a": {"repoType": "hg", "pinRevision": "abc", "lockBranch": "stable"}},
  "rootDirectory": ".",
  "seedPathFromRoot": "."
}`))
	if err != nil {
		t.Fatal(err)
	}
	dep := m.Dependencies["a"]
	if dep.Kind != Pinned || dep.Ref != "abc" {
		t.Errorf("dep = %+v, want pinned at abc", dep)
	}
	if dep.LockBranch() != "" {
		t.Errorf("LockBranch = %q, want empty", dep.LockBranch())
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}

func TestResolveOrigins(t *testing.T) {
	m := New()
	m.Dependencies["a"] = FreeDependency(vcs.Git, "../a.git")
	m.Dependencies["b"] = LockedDependency(vcs.Git, "https://other.example.com/b.git", "main")
	m.Dependencies["c"] = FreeDependency(vcs.Git, "")
	m.ResolveOrigins("git@example.com:org/app.git")

	want := map[string]string{
		"a": "git@example.com:org/a.git",
		"b": "https://other.example.com/b.git",
		"c": "",
	}
	for p, origin := range want {
		if got := m.Dependencies[p].Origin; got != origin {
			t.Errorf("%s origin = %q, want %q", p, got, origin)
		}
	}
}

func TestVariants(t *testing.T) {
	seed := t.TempDir()
	if _, err := Variants(seed); err == nil {
		t.Error("expected error without control dir")
	}
	writeFile(t, Path(seed, "b"), `{}`)
	writeFile(t, Path(seed, "a"), `{}`)
	writeFile(t, filepath.Join(seed, ControlDir, "notes.txt"), "x")
	got, err := Variants(seed)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Variants = %v, want %v", got, want)
	}
}
