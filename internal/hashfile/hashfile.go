// Where: internal/hashfile/hashfile.go
// What: Checksum-file reading and writing.
// Why: Persist environment fingerprints in the standard "digest name" line format.
package hashfile

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"
)

// DefaultAlgorithm is used when no algorithm is given.
const DefaultAlgorithm = "sha256"

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// NewDigest returns a new hash for the named algorithm.
func NewDigest(algorithm string) (hash.Hash, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	factory, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
	return factory(), nil
}

// digestWidth returns the hex width of the named algorithm's digests.
func digestWidth(algorithm string) (int, error) {
	h, err := NewDigest(algorithm)
	if err != nil {
		return 0, err
	}
	return h.Size() * 2, nil
}

// Entry is one line of a checksum file: a hex digest and the name it covers.
// The binary marker mirrors the coreutils convention of a "*" before names
// hashed in binary mode; it is carried through parsing and rendering.
type Entry struct {
	Digest string
	Name   string
	Binary bool
}

// String renders the entry in "digest *name" or "digest  name" form.
func (e Entry) String() string {
	marker := " "
	if e.Binary {
		marker = "*"
	}
	return e.Digest + " " + marker + e.Name
}

// MalformedEntryError reports a checksum-file line that does not match the
// "digest name" shape.
type MalformedEntryError struct {
	Line string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed checksum entry %q", e.Line)
}

var entryPattern = regexp.MustCompile(`^([a-fA-F0-9]+)\s+(.*)$`)

// ParseEntry parses a single checksum-file line.
func ParseEntry(line string) (Entry, error) {
	trimmed := strings.TrimSpace(line)
	match := entryPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Entry{}, &MalformedEntryError{Line: trimmed}
	}
	name := match[2]
	binary := strings.HasPrefix(name, "*")
	if binary {
		name = name[1:]
	}
	return Entry{Digest: match[1], Name: name, Binary: binary}, nil
}

// HashReader computes the hex digest of everything in r.
func HashReader(r io.Reader, algorithm string) (string, error) {
	h, err := NewDigest(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashBytes computes the hex digest of b.
func HashBytes(b []byte, algorithm string) (string, error) {
	return HashReader(bytes.NewReader(b), algorithm)
}

// HashFileOf computes the hex digest of the file at path.
func HashFileOf(path, algorithm string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f, algorithm)
}

// File reads and writes one checksum file on disk. All entries in a file
// share one algorithm; digests of a different width are rejected on write.
type File struct {
	Path      string
	Algorithm string

	width int
}

// Open prepares a File for the given path. The file itself need not exist
// yet; Entries returns an empty list for a missing file.
func Open(path, algorithm string) (*File, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	width, err := digestWidth(algorithm)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, Algorithm: algorithm, width: width}, nil
}

// Entries reads every entry in the file. Lines that do not parse produce a
// MalformedEntryError naming the offending line; blank lines are skipped.
func (f *File) Entries() ([]Entry, error) {
	payload, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(string(payload), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Lookup returns the entry for name and whether it was found.
func (f *File) Lookup(name string) (Entry, bool, error) {
	entries, err := f.Entries()
	if err != nil {
		return Entry{}, false, err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// Append adds an entry at the end of the file, creating it when missing and
// keeping exactly one newline between entries.
func (f *File) Append(entry Entry) error {
	if err := f.checkDigest(entry); err != nil {
		return err
	}

	handle, err := os.OpenFile(f.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer handle.Close()

	end, err := handle.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	prefix := ""
	// Don't start the file with a blank line, and don't double up newlines.
	if end > 0 {
		last := make([]byte, 1)
		if _, err := handle.ReadAt(last, end-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			prefix = "\n"
		}
	}
	_, err = handle.WriteString(prefix + entry.String() + "\n")
	return err
}

// Update replaces the digest of the entry with the same name, writing in
// place since digests of one algorithm are fixed-width. Missing entries are
// appended instead.
func (f *File) Update(entry Entry) error {
	if err := f.checkDigest(entry); err != nil {
		return err
	}

	offset, found, err := f.offsetOf(entry.Name)
	if err != nil {
		return err
	}
	if !found {
		return f.Append(entry)
	}

	handle, err := os.OpenFile(f.Path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer handle.Close()

	_, err = handle.WriteAt([]byte(entry.Digest), offset)
	return err
}

// offsetOf scans for the line holding name and returns the byte offset of
// its digest.
func (f *File) offsetOf(name string) (int64, bool, error) {
	payload, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var offset int64
	for _, line := range strings.SplitAfter(string(payload), "\n") {
		entry, err := ParseEntry(line)
		if err == nil && entry.Name == name {
			indent := int64(len(line) - len(strings.TrimLeft(line, " \t")))
			return offset + indent, true, nil
		}
		offset += int64(len(line))
	}
	return 0, false, nil
}

func (f *File) checkDigest(entry Entry) error {
	if len(entry.Digest) != f.width {
		return fmt.Errorf("digest width %d does not match %s entries (want %d)",
			len(entry.Digest), f.Algorithm, f.width)
	}
	if strings.TrimSpace(entry.Name) == "" {
		return fmt.Errorf("entry name is required")
	}
	return nil
}
