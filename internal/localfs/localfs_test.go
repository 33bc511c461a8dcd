package localfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{".gitignore", true},
		{"visible.txt", false},
		{"normal", false},
		{"/path/to/.hidden", true},
		{"/path/to/visible.txt", false},
		{"../.hidden", true},
		{"../visible.txt", false},
		{"..", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := IsHidden(tt.path)
			if result != tt.expected {
				t.Errorf("IsHidden(%q) = %v, want %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestIsHiddenName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{".hidden", true},
		{".gitignore", true},
		{"visible.txt", false},
		{"normal", false},
		{"..", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsHiddenName(tt.name)
			if result != tt.expected {
				t.Errorf("IsHiddenName(%q) = %v, want %v", tt.name, result, tt.expected)
			}
		})
	}
}

func TestWalkFilesSkipsHiddenByDefault(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "localfs_walk_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "file1.txt"), []byte("1"), 0644)
	os.WriteFile(filepath.Join(tmpDir, ".hidden_file"), []byte("h"), 0644)
	os.MkdirAll(filepath.Join(tmpDir, "subdir"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "subdir", "file2.txt"), []byte("2"), 0644)
	os.MkdirAll(filepath.Join(tmpDir, ".hidden_dir"), 0755)
	os.WriteFile(filepath.Join(tmpDir, ".hidden_dir", "file3.txt"), []byte("3"), 0644)

	var found []string
	err = WalkFiles(tmpDir, WalkOptions{SkipHiddenDirs: true}, func(entry FileEntry) error {
		found = append(found, entry.Name)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(found) != 2 {
		t.Fatalf("got %v, want 2 visible files", found)
	}
	for _, name := range found {
		if IsHiddenName(name) {
			t.Errorf("found hidden file %q with IncludeHidden=false", name)
		}
	}
}

func TestWalkFilesIncludeHidden(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "localfs_walk_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "file1.txt"), []byte("1"), 0644)
	os.WriteFile(filepath.Join(tmpDir, ".hidden_file"), []byte("h"), 0644)

	var found []string
	err = WalkFiles(tmpDir, WalkOptions{IncludeHidden: true}, func(entry FileEntry) error {
		found = append(found, entry.Name)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Errorf("got %d files, want 2", len(found))
	}
}
