// Package catalog filters, pages, and renders conversation snapshots.
package catalog

import (
	"fmt"
	"strings"

	"github.com/nkotelnikov/telesweep/internal/model"
)

// Filter returns the refs matching kind, preserving order. KindAny (or empty)
// passes everything through.
func Filter(refs []model.Conversation, kind model.ConversationKind) []model.Conversation {
	if kind == "" || kind == model.KindAny {
		return refs
	}
	out := make([]model.Conversation, 0, len(refs))
	for _, r := range refs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Page returns the 1-indexed page of refs with pageSize entries. Page numbers
// below 1 or beyond the last non-empty page return an empty slice; callers
// treat empty as a navigation no-op.
func Page(refs []model.Conversation, pageNumber, pageSize int) []model.Conversation {
	if pageNumber < 1 || pageSize < 1 {
		return nil
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(refs) {
		return nil
	}
	end := min(start+pageSize, len(refs))
	return refs[start:end]
}

// PageCount returns the number of non-empty pages.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// FormatPage renders one page as numbered entries. Numbers are absolute
// positions in refs, so a reply maps back to the full snapshot regardless of
// the page shown.
func FormatPage(refs []model.Conversation, pageNumber, pageSize int) string {
	entries := Page(refs, pageNumber, pageSize)
	var b strings.Builder
	fmt.Fprintf(&b, "Reply with the number of the conversation to erase (page %d/%d):\n",
		pageNumber, PageCount(len(refs), pageSize))
	base := (pageNumber - 1) * pageSize
	for i, r := range entries {
		fmt.Fprintf(&b, "%d. %s [%s]\n", base+i+1, r.Title, r.Kind)
	}
	return b.String()
}
