package transform

import (
	"github.com/bytedance/sonic/ast"
	"github.com/use-agent/tubeshim/route"
)

// sectionListPaths locate the result sections of a first-page search
// response: desktop layout first, then the mobile one.
var sectionListPaths = [][]interface{}{
	{"contents", "twoColumnSearchResultsRenderer", "primaryContents", "sectionListRenderer", "contents"},
	{"contents", "sectionListRenderer", "contents"},
}

// shortFormKeys mark an entry as a short-form video card.
var shortFormKeys = []string{
	"reelShelfRenderer",
	"reelItemRenderer",
	"shortsLockupViewModel",
}

// Search rewrites a /youtubei/v1/search response, removing every
// short-form entry from the result lists.
func Search(body []byte) ([]byte, error) {
	out, _, err := SearchWithStats(body)
	return out, err
}

// SearchWithStats is Search that also reports how many entries it removed.
func SearchWithStats(body []byte) ([]byte, int, error) {
	doc, err := Parse(route.Search, body)
	if err != nil {
		return nil, 0, err
	}

	lists := doc.resultLists()
	if len(lists) == 0 {
		return nil, 0, doc.missing(sectionListPaths[0], "no result list found")
	}

	removed := 0
	for _, path := range lists {
		removed += doc.filterSection(path)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return out, removed, nil
}

// resultLists returns the paths of every section list in the document,
// including continuation pages appended by onResponseReceivedCommands.
func (d *Document) resultLists() [][]interface{} {
	var lists [][]interface{}
	for _, p := range sectionListPaths {
		if _, ok := d.array(p...); ok {
			lists = append(lists, p)
		}
	}

	for i := range d.arrayLen("onResponseReceivedCommands") {
		p := []interface{}{"onResponseReceivedCommands", i, "appendContinuationItemsAction", "continuationItems"}
		if _, ok := d.array(p...); ok {
			lists = append(lists, p)
		}
	}
	return lists
}

// filterSection filters the list at path, then every
// itemSectionRenderer.contents list nested in it.
func (d *Document) filterSection(path []interface{}) int {
	removed := d.filterList(path)

	for i := range d.arrayLen(path...) {
		inner := join(path, i, "itemSectionRenderer", "contents")
		if _, ok := d.array(inner...); ok {
			removed += d.filterList(inner)
		}
	}
	return removed
}

// filterList drops short-form entries from the list at path, keeping the
// order of the rest. The list node is only replaced when something changed;
// kept entries are carried over as they were.
func (d *Document) filterList(path []interface{}) int {
	list, ok := d.array(path...)
	if !ok {
		return 0
	}
	items, err := list.ArrayUseNode()
	if err != nil {
		return 0
	}

	kept := make([]ast.Node, 0, len(items))
	for i := range items {
		if isShortForm(&items[i]) {
			continue
		}
		kept = append(kept, items[i])
	}

	removed := len(items) - len(kept)
	if removed > 0 {
		*list = ast.NewArray(kept)
	}
	return removed
}

func isShortForm(entry *ast.Node) bool {
	if entry.TypeSafe() != ast.V_OBJECT {
		return false
	}
	for _, key := range shortFormKeys {
		if entry.Get(key).Exists() {
			return true
		}
	}
	return entry.GetByPath("videoRenderer", "navigationEndpoint", "reelWatchEndpoint").Exists()
}
