// Package bot wires commands, button callbacks, and prompts into workflows.
package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind enumerates every button payload the bot emits. Payloads are
// structured "kind" or "kind:page", never pattern-matched free text.
type CallbackKind string

const (
	CbSessionCreate CallbackKind = "sess.create"
	CbSessionChange CallbackKind = "sess.change"
	CbSessionRevoke CallbackKind = "sess.revoke"
	CbSessionDelete CallbackKind = "sess.delete"
	CbPickPage      CallbackKind = "pick.page"
)

var knownCallbackKinds = map[CallbackKind]bool{
	CbSessionCreate: true,
	CbSessionChange: true,
	CbSessionRevoke: true,
	CbSessionDelete: true,
	CbPickPage:      true,
}

// EncodeCallback builds a button payload. page is only meaningful for CbPickPage.
func EncodeCallback(kind CallbackKind, page int) string {
	if page == 0 {
		return string(kind)
	}
	return fmt.Sprintf("%s:%d", kind, page)
}

// DecodeCallback parses a button payload into its kind and optional page number.
func DecodeCallback(data string) (CallbackKind, int, error) {
	kindStr, pageStr, hasPage := strings.Cut(data, ":")
	kind := CallbackKind(kindStr)
	if !knownCallbackKinds[kind] {
		return "", 0, fmt.Errorf("unknown callback kind %q", kindStr)
	}
	if !hasPage {
		return kind, 0, nil
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return "", 0, fmt.Errorf("bad page in callback %q", data)
	}
	return kind, page, nil
}
