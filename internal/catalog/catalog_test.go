package catalog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nkotelnikov/telesweep/internal/model"
)

func refs(n int) []model.Conversation {
	out := make([]model.Conversation, n)
	for i := range out {
		kind := model.KindGroup
		if i%3 == 0 {
			kind = model.KindDialog
		}
		out[i] = model.Conversation{ID: int64(i + 1), Title: fmt.Sprintf("conv-%d", i+1), Kind: kind}
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()

	all := refs(9)

	dialogs := Filter(all, model.KindDialog)
	for i, r := range dialogs {
		if r.Kind != model.KindDialog {
			t.Fatalf("entry %d has kind %s", i, r.Kind)
		}
	}
	if len(dialogs) != 3 {
		t.Fatalf("len = %d, want 3", len(dialogs))
	}
	// Order preserved.
	if dialogs[0].ID != 1 || dialogs[1].ID != 4 || dialogs[2].ID != 7 {
		t.Fatalf("order not preserved: %+v", dialogs)
	}

	if got := Filter(all, model.KindAny); len(got) != len(all) {
		t.Fatalf("KindAny must pass all, got %d", len(got))
	}
	if got := Filter(all, ""); len(got) != len(all) {
		t.Fatalf("empty kind must pass all, got %d", len(got))
	}
	if got := Filter(all, model.KindChannel); len(got) != 0 {
		t.Fatalf("no channels expected, got %d", len(got))
	}
}

func TestPage_Bounds(t *testing.T) {
	t.Parallel()

	all := refs(25)

	if got := Page(all, 0, 10); len(got) != 0 {
		t.Fatalf("page 0 must be empty, got %d", len(got))
	}
	if got := Page(all, -1, 10); len(got) != 0 {
		t.Fatalf("negative page must be empty, got %d", len(got))
	}
	if got := Page(all, 4, 10); len(got) != 0 {
		t.Fatalf("page beyond last must be empty, got %d", len(got))
	}
	if got := Page(nil, 1, 10); len(got) != 0 {
		t.Fatalf("page of empty refs must be empty, got %d", len(got))
	}
	if got := Page(all, 3, 10); len(got) != 5 {
		t.Fatalf("last page len = %d, want 5", len(got))
	}
}

func TestPage_ConcatenationReconstructs(t *testing.T) {
	t.Parallel()

	all := refs(25)
	const size = 10

	var rebuilt []model.Conversation
	for p := 1; ; p++ {
		page := Page(all, p, size)
		if len(page) == 0 {
			break
		}
		rebuilt = append(rebuilt, page...)
	}
	if len(rebuilt) != len(all) {
		t.Fatalf("rebuilt %d entries, want %d", len(rebuilt), len(all))
	}
	for i := range all {
		if rebuilt[i].ID != all[i].ID {
			t.Fatalf("entry %d: id %d, want %d", i, rebuilt[i].ID, all[i].ID)
		}
	}
}

func TestPageCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := PageCount(c.total, c.size); got != c.want {
			t.Fatalf("PageCount(%d, %d) = %d, want %d", c.total, c.size, got, c.want)
		}
	}
}

func TestFormatPage_AbsoluteNumbering(t *testing.T) {
	t.Parallel()

	all := refs(25)
	text := FormatPage(all, 2, 10)

	if !strings.Contains(text, "page 2/3") {
		t.Fatalf("missing page header: %q", text)
	}
	if !strings.Contains(text, "11. conv-11") || !strings.Contains(text, "20. conv-20") {
		t.Fatalf("page 2 must show entries 11-20: %q", text)
	}
	if strings.Contains(text, "10. conv-10") || strings.Contains(text, "21. conv-21") {
		t.Fatalf("page 2 must not show entries outside 11-20: %q", text)
	}
}
