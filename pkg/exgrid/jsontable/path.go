package jsontable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// compilePath converts a table path ("a.b[0].c") into a JSONPath expression
// rooted at the document.
func compilePath(path string) (jp.Expr, error) {
	x := jp.R()
	rest := strings.TrimSpace(path)
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in path %q", path)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid index %q in path %q", rest[1:end], path)
			}
			x = x.N(n)
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			x = x.C(rest[:end])
			rest = rest[end:]
		}
	}
	return x, nil
}

// lookup returns the value at path, or false when the path does not resolve.
func lookup(doc any, path string) (any, bool, error) {
	x, err := compilePath(path)
	if err != nil {
		return nil, false, err
	}
	if len(x) == 1 {
		return doc, true, nil
	}
	found := x.Get(doc)
	if len(found) == 0 {
		return nil, false, nil
	}
	return found[0], true, nil
}

// assign stores value at path and returns the document, which is value
// itself when path is the root.
func assign(doc any, path string, value any) (any, error) {
	x, err := compilePath(path)
	if err != nil {
		return doc, err
	}
	if len(x) == 1 {
		return value, nil
	}
	if err := x.Set(doc, value); err != nil {
		return doc, err
	}
	return doc, nil
}
