/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package catalog indexes every servable file under a document root,
// keyed by a fingerprint of its path, and answers path -> (ETag,
// Last-Modified) lookups for the response emitter without touching the
// filesystem on the hot path.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sabouaram/staticd/errcode"
	"github.com/sabouaram/staticd/logging"
)

// imfFixdate is RFC 7231's fixed HTTP-date format, always rendered in GMT.
const imfFixdate = "Mon, 02 Jan 2006 15:04:05 GMT"

// Entry is one servable file at snapshot time.
type Entry struct {
	Path               string
	PathFingerprint    uint32
	ContentFingerprint uint32
	LastModified       string
}

// Catalog is a read-only, published snapshot. It is never mutated after
// Build returns; a refresh calls Build again and publishes the brand-new
// Catalog rather than editing one in place.
type Catalog struct {
	byFingerprint map[uint32]Entry
}

// Options controls how Build walks the document root.
type Options struct {
	// Root is the document root; the servable subtree is Root/webpages.
	Root string
	// ExcludeGlobs are doublestar patterns (relative to webpages/)
	// excluded from the catalog; videos/** is always excluded in
	// addition to whatever is configured here.
	ExcludeGlobs []string
	Log          logging.Logger
}

// Build walks the document root once and returns a fully populated
// Catalog. It fails only if the root itself cannot be read; a single
// unreadable file is logged and skipped.
func Build(opt Options) (*Catalog, error) {
	webpages := filepath.Join(opt.Root, "webpages")

	if _, err := os.Stat(webpages); err != nil {
		return nil, errcode.New(errcode.CatalogBuildFailure, err)
	}

	c := &Catalog{byFingerprint: make(map[uint32]Entry)}
	excludes := append([]string{"videos/**"}, opt.ExcludeGlobs...)

	walkErr := filepath.WalkDir(webpages, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logSkip(opt.Log, path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(webpages, path)
		if err != nil {
			logSkip(opt.Log, path, err)
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(excludes, rel) {
			return nil
		}

		entry, err := buildEntry(path)
		if err != nil {
			logSkip(opt.Log, path, err)
			return nil
		}

		if _, dup := c.byFingerprint[entry.PathFingerprint]; dup {
			logSkip(opt.Log, path, fmt.Errorf("path fingerprint collision"))
			return nil
		}

		c.byFingerprint[entry.PathFingerprint] = entry
		return nil
	})

	if walkErr != nil {
		return nil, errcode.New(errcode.CatalogBuildFailure, walkErr)
	}

	return c, nil
}

func buildEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}

	pathFP := PathFingerprint(path)
	contentFP := ContentFingerprint(data)

	if pathFP == 0 || contentFP == 0 {
		return Entry{}, fmt.Errorf("degenerate fingerprint for %s", path)
	}

	return Entry{
		Path:               path,
		PathFingerprint:    pathFP,
		ContentFingerprint: contentFP,
		LastModified:       info.ModTime().UTC().Format(imfFixdate),
	}, nil
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func logSkip(log logging.Logger, path string, err error) {
	if log == nil {
		return
	}
	log.Entry(logging.WarnLevel, "skipping catalog entry").
		Field("path", path).
		ErrorAdd(false, err).
		Log()
}

// Lookup resolves path (an absolute filesystem path, as produced by the
// response emitter's path resolution) to its catalog entry. Absent is
// reported via the second return, never by panic or error.
func (c *Catalog) Lookup(path string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}

	e, ok := c.byFingerprint[PathFingerprint(path)]
	if !ok || e.Path != path {
		return Entry{}, false
	}

	return e, true
}

// Len reports the number of entries in the catalog, mostly for monitoring.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byFingerprint)
}

// FormatModTime renders t the same way Build does, for use by callers that
// need to construct an IMF-fixdate outside the walk (tests, tools).
func FormatModTime(t time.Time) string {
	return t.UTC().Format(imfFixdate)
}

// CompareModified compares If-Modified-Since against a stored
// Last-Modified as a lexicographic string compare on the IMF-fixdate
// strings, not a reparsed timestamp comparison. It only behaves correctly
// because both sides share the exact fixed-width format; do not "fix"
// this to a time.Parse-based compare, it would change observable
// semantics for clients that already hold our validators.
func CompareModified(ifModifiedSince, lastModified string) bool {
	return strings.Compare(ifModifiedSince, lastModified) >= 0
}
