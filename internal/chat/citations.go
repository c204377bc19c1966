package chat

import (
	"strings"

	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

// LinkCitation finds the document a citation source refers to. Sources are
// free text such as "Theft" or "Section 3.1", so a document matches when its
// section name equals the source, contains it, or is contained in it,
// ignoring case. Documents without a section name are matched on their main
// section and then their section number.
func LinkCitation(source string, docs []sections.FlatSection) (sections.FlatSection, bool) {
	needle := strings.ToLower(strings.TrimSpace(source))
	if needle == "" {
		return sections.FlatSection{}, false
	}

	for _, d := range docs {
		if d.Section != "" {
			if related(needle, d.Section) {
				return d, true
			}
			continue
		}
		if related(needle, d.MainSection) || related(needle, d.SubsectionNumber) {
			return d, true
		}
	}
	return sections.FlatSection{}, false
}

func related(needle, field string) bool {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return false
	}
	return field == needle || strings.Contains(field, needle) || strings.Contains(needle, field)
}
