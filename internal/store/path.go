package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/wlsync/internal/shared"
)

// segment is one step of a document path: an object key or an array index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// docPath addresses a node inside a document. The empty path is the root.
type docPath []segment

// field appends an object key.
func (p docPath) field(key string) (docPath, error) {
	if key == "" || strings.ContainsAny(key, `"\`) {
		return nil, fmt.Errorf("%w: key %q", shared.ErrBadPath, key)
	}
	return append(p[:len(p):len(p)], segment{key: key}), nil
}

// element appends an array index given as its decimal text.
func (p docPath) element(key string) (docPath, error) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return nil, fmt.Errorf("%w: array index %q", shared.ErrBadPath, key)
	}
	return append(p[:len(p):len(p)], segment{index: i, isIndex: true}), nil
}

// sqlite renders the path in SQLite JSON1 syntax: $."a"."b"[3].
func (p docPath) sqlite() string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range p {
		if s.isIndex {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		b.WriteString(`."`)
		b.WriteString(s.key)
		b.WriteString(`"`)
	}
	return b.String()
}

// postgres renders the path as the text[] used by #>, #- and jsonb_set.
func (p docPath) postgres() []string {
	out := make([]string, len(p))
	for i, s := range p {
		if s.isIndex {
			out[i] = strconv.Itoa(s.index)
			continue
		}
		out[i] = s.key
	}
	return out
}

// String renders the path in dotted form: a.b[3].
func (p docPath) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.isIndex {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(s.key)
	}
	return b.String()
}
