package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockNames maps config names to CDP resource types. Scripts and documents
// have no entry: blocking them would leave nothing to cover.
var blockNames = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"image":       proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"font":        proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
	"stylesheet":  proto.NetworkResourceTypeStylesheet,
	"ping":        proto.NetworkResourceTypePing,
	"websocket":   proto.NetworkResourceTypeWebSocket,
	"manifest":    proto.NetworkResourceTypeManifest,
	"texttrack":   proto.NetworkResourceTypeTextTrack,
}

type blocker map[proto.NetworkResourceType]bool

// newBlocker resolves config names, case-insensitively. Unknown names and
// names that would block scripts are ignored.
func newBlocker(names []string) blocker {
	b := make(blocker, len(names))
	for _, n := range names {
		if t, ok := blockNames[strings.ToLower(n)]; ok {
			b[t] = true
		}
	}
	return b
}

func (b blocker) blocks(t proto.NetworkResourceType) bool { return b[t] }

// hijack fails matching requests on page and lets everything else through.
// The returned router must be stopped when the tab closes; it is nil when
// nothing is blocked.
func (b blocker) hijack(page *rod.Page) (*rod.HijackRouter, error) {
	if len(b) == 0 {
		return nil, nil
	}
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}
	go router.Run()
	return router, nil
}
