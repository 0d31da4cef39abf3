package tasks

import "sync"

// Selection is the ordered set of files the user picked, deduplicated by
// file key.
type Selection struct {
	mu      sync.Mutex
	files   []File
	version uint64

	// memoized Default()
	defVersion uint64
	defFile    File
	defOK      bool
	defValid   bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Add appends files not already selected and returns the ones that were new.
func (s *Selection) Add(files ...File) []File {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.files))
	for _, f := range s.files {
		seen[f.Key()] = struct{}{}
	}

	var added []File
	for _, f := range files {
		k := f.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		s.files = append(s.files, f)
		added = append(added, f)
	}
	if len(added) > 0 {
		s.version++
	}
	return added
}

// Remove drops the file with the given key. Missing keys are ignored.
func (s *Selection) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.Key() == key {
			s.files = append(s.files[:i:i], s.files[i+1:]...)
			s.version++
			return true
		}
	}
	return false
}

// Lookup returns the selected file with the given key.
func (s *Selection) Lookup(key string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.Key() == key {
			return f, true
		}
	}
	return File{}, false
}

// Files returns a copy of the selected files in insertion order.
func (s *Selection) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Len returns the number of selected files.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Default returns the file that should be focused when nothing else is: the
// first selected file. The result is cached until the selection changes.
func (s *Selection) Default() (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defValid && s.defVersion == s.version {
		return s.defFile, s.defOK
	}
	s.defFile, s.defOK = File{}, false
	if len(s.files) > 0 {
		s.defFile, s.defOK = s.files[0], true
	}
	s.defVersion = s.version
	s.defValid = true
	return s.defFile, s.defOK
}
