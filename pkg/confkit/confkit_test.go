package confkit_test

import (
	"os"
	"path/filepath"
	"testing"

	"tickd/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		file     string
		expected string
	}{
		{
			name:     "absolute path",
			base:     "/base/dir",
			file:     "/absolute/path/feed.yaml",
			expected: "/absolute/path/feed.yaml",
		},
		{
			name:     "relative path",
			base:     "/base/dir",
			file:     "etc/feed.yaml",
			expected: "/base/dir/etc/feed.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confkit.ResolvePath(tt.base, tt.file); got != tt.expected {
				t.Errorf("ResolvePath() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResolvePathExpandsEnv(t *testing.T) {
	t.Setenv("CONFKIT_TEST_DIR", "expanded")
	got := confkit.ResolvePath("/base", "${CONFKIT_TEST_DIR}/feed.yaml")
	want := filepath.Join("/base", "expanded", "feed.yaml")
	if got != want {
		t.Errorf("ResolvePath() = %v, want %v", got, want)
	}
}

func TestBaseDir(t *testing.T) {
	if got := confkit.BaseDir("/etc/tickd/tickd.yaml"); got != "/etc/tickd" {
		t.Errorf("BaseDir() = %v, want /etc/tickd", got)
	}
	if got := confkit.BaseDir("etc/tickd.yaml"); got != "etc" {
		t.Errorf("BaseDir() = %v, want etc", got)
	}
}

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file reference is a no-op", func(t *testing.T) {
		section := &confkit.Section[string]{}
		err := section.Hydrate("/base", func(path string) (*string, error) {
			t.Error("loader should not run without a file reference")
			return nil, nil
		})
		if err != nil {
			t.Errorf("Hydrate() error = %v, want nil", err)
		}
		if section.Value != nil {
			t.Error("Value should remain nil without a file reference")
		}
	})

	t.Run("loads and rewrites the file path", func(t *testing.T) {
		section := &confkit.Section[string]{File: "feed.yaml"}
		expected := "loaded"

		err := section.Hydrate("/base", func(path string) (*string, error) {
			if path != "/base/feed.yaml" {
				t.Errorf("loader received %v, want /base/feed.yaml", path)
			}
			return &expected, nil
		})
		if err != nil {
			t.Errorf("Hydrate() error = %v, want nil", err)
		}
		if section.Value == nil || *section.Value != expected {
			t.Errorf("Value = %v, want %v", section.Value, expected)
		}
		if section.File != "/base/feed.yaml" {
			t.Errorf("File = %v, want /base/feed.yaml", section.File)
		}
	})
}

func TestProjectPath(t *testing.T) {
	p, err := confkit.ProjectPath("etc/tickd.yaml")
	if err != nil {
		t.Fatalf("ProjectPath() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(filepath.Dir(p))); err != nil {
		t.Fatalf("project root should exist: %v", err)
	}
}
