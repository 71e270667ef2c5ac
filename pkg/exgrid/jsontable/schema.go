// Package jsontable treats arrays of objects inside JSON documents as
// editable tables addressed by path.
package jsontable

import (
	"sort"
	"strconv"

	"github.com/ohler55/ojg/oj"
)

// TypeArrayOfObjects is the only table type.
const TypeArrayOfObjects = "arrayOfObjects"

// IndexPK is the primary key of tables without a unique column: the item's
// position in the array.
const IndexPK = "#"

// leafSample is the number of items inspected for nested values.
const leafSample = 10

var pkCandidates = []string{"#", "id", "uuid", "ID", "key", "name", "_id", "rowId", "pk", "primary_key"}

// TableMeta describes one array of objects.
type TableMeta struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
	// IsLeaf is set when sampled items hold only scalar values.
	IsLeaf    bool   `json:"is_leaf"`
	PKField   string `json:"pk_field"`
	AllowCRUD bool   `json:"allow_crud"`
	ItemCount int    `json:"item_count"`
}

// Schema maps table paths to their metadata. Paths use dotted keys and
// bracketed indexes ("orders[0].lines"); the root is "".
type Schema struct {
	ByPath map[string]TableMeta `json:"byPath"`
}

// Analyze finds every non-empty array whose items are all objects.
func Analyze(doc any) Schema {
	s := Schema{ByPath: map[string]TableMeta{}}
	analyzeNode(s.ByPath, doc, "")
	return s
}

func analyzeNode(out map[string]TableMeta, node any, path string) {
	switch v := node.(type) {
	case []any:
		items, ok := objectItems(v)
		if !ok {
			return
		}
		out[path] = describe(items)
		for i, item := range items {
			for _, key := range sortedKeys(item) {
				analyzeNode(out, item[key], path+"["+strconv.Itoa(i)+"]."+key)
			}
		}
	case map[string]any:
		for _, key := range sortedKeys(v) {
			child := key
			if path != "" {
				child = path + "." + key
			}
			analyzeNode(out, v[key], child)
		}
	}
}

func objectItems(arr []any) ([]map[string]any, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	items := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		items = append(items, m)
	}
	return items, true
}

func describe(items []map[string]any) TableMeta {
	seen := map[string]bool{}
	var columns []string
	for _, item := range items {
		for _, k := range sortedKeys(item) {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	leaf := true
	for i, item := range items {
		if i == leafSample || !leaf {
			break
		}
		for _, v := range item {
			switch v.(type) {
			case map[string]any, []any:
				leaf = false
			}
		}
	}

	pk := detectPK(items, seen, columns)
	return TableMeta{
		Type:      TypeArrayOfObjects,
		Columns:   columns,
		IsLeaf:    leaf,
		PKField:   pk,
		AllowCRUD: pk != "",
		ItemCount: len(items),
	}
}

// detectPK prefers a well-known key name with unique, non-null values, then
// any column with unique non-empty values, then the item index.
func detectPK(items []map[string]any, has map[string]bool, columns []string) string {
	for _, c := range pkCandidates {
		if has[c] && unique(items, c, false) {
			return c
		}
	}
	for _, c := range columns {
		if unique(items, c, true) {
			return c
		}
	}
	return IndexPK
}

func unique(items []map[string]any, col string, strict bool) bool {
	values := make(map[string]bool, len(items))
	for _, item := range items {
		v := item[col]
		if v == nil || (strict && isZero(v)) {
			return false
		}
		key := canonical(v)
		if values[key] {
			return false
		}
		values[key] = true
	}
	return true
}

func isZero(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case int64:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}

// canonical renders a value as key-sorted JSON so equal values compare equal.
func canonical(v any) string {
	return oj.JSON(normalize(v), &oj.Options{Sort: true})
}

// normalize converts Go numeric types to the int64/float64 forms the parser
// produces.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return normalize(float64(t))
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
