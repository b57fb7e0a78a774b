package transform

import (
	"github.com/use-agent/tubeshim/route"
)

// playerAdKeys are the top-level player fields the page's player reads to
// schedule ad breaks.
var playerAdKeys = []string{
	"adPlacements",
	"adSlots",
	"playerAds",
	"adBreakHeartbeatParams",
}

// Player rewrites a /youtubei/v1/player response. The document must carry
// a playabilityStatus object; all fields outside playerAdKeys are kept.
func Player(body []byte) ([]byte, error) {
	doc, err := Parse(route.Player, body)
	if err != nil {
		return nil, err
	}
	if err := doc.requireObject("playabilityStatus"); err != nil {
		return nil, err
	}

	for _, key := range playerAdKeys {
		doc.del(key)
	}
	return doc.Bytes()
}
