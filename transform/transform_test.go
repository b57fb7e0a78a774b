package transform

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
)

const playerDoc = `{
	"responseContext": {"visitorData": "CgtYZ3", "serviceTrackingParams": [{"service": "GFEEDBACK"}]},
	"playabilityStatus": {"status": "OK", "playableInEmbed": true},
	"streamingData": {"expiresInSeconds": "21540", "formats": [{"itag": 18, "bitrate": 503161}]},
	"videoDetails": {"videoId": "dQw4w9WgXcQ", "lengthSeconds": "212", "viewCount": "1234567890"},
	"playbackTracking": {"videostatsPlaybackUrl": {"baseUrl": "https://s.youtube.com/api/stats/playback?a=1&b=2"}},
	"microformat": {"playerMicroformatRenderer": {"title": {"simpleText": "<b>Title</b> & more"}}},
	"trackingParams": "CAAQu2kiEwj",
	"bigNumber": 12345678901234567890,
	"adPlacements": [{"adPlacementRenderer": {"config": {}}}],
	"adSlots": [{"adSlotRenderer": {}}],
	"playerAds": [{"playerLegacyDesktopWatchAdsRenderer": {}}],
	"adBreakHeartbeatParams": "Q0FBJTNE"
}`

func decode(t *testing.T, b []byte) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestPlayer_RemovesAdFieldsAndKeepsTheRest(t *testing.T) {
	in := decode(t, []byte(playerDoc))

	out, err := Player([]byte(playerDoc))
	require.NoError(t, err)
	got := decode(t, out)

	for _, key := range playerAdKeys {
		assert.NotContains(t, got, key)
	}

	unrelated := 0
	for key, want := range in {
		if contains(playerAdKeys, key) {
			continue
		}
		unrelated++
		assert.Equal(t, want, got[key], "field %s changed", key)
	}
	assert.Len(t, got, unrelated)
}

func TestPlayer_PreservesNumberLiterals(t *testing.T) {
	out, err := Player([]byte(playerDoc))
	require.NoError(t, err)
	assert.Contains(t, string(out), "12345678901234567890")
	assert.Contains(t, string(out), `"formats": [{"itag": 18, "bitrate": 503161}]`)
}

func TestPlayer_KeepsUntouchedFieldsVerbatim(t *testing.T) {
	doc := `{"videoDetails":{"title":"a\ud83d b","z":2,"a":1,"e":1e400},` +
		`"adPlacements":[{}],"playabilityStatus":{"status":"OK"},"playerAds":[],"b":"\u00e9\/"}`

	out, err := Player([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t,
		`{"videoDetails":{"title":"a\ud83d b","z":2,"a":1,"e":1e400},"playabilityStatus":{"status":"OK"},"b":"\u00e9\/"}`,
		string(out),
	)
}

func TestPlayer_KeepsKeyOrder(t *testing.T) {
	doc := `{"zeta":1,"playabilityStatus":{"status":"OK"},"adSlots":[],"alpha":{"y":[3,2,1],"x":null},"mid":true}`

	out, err := Player([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"playabilityStatus":{"status":"OK"},"alpha":{"y":[3,2,1],"x":null},"mid":true}`, string(out))
}

func TestPlayer_WithoutAdsIsUnchangedInValue(t *testing.T) {
	doc := `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"},"extra":[1,2,3]}`
	out, err := Player([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, decode(t, []byte(doc)), decode(t, out))
}

func TestPlayer_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"truncated", playerDoc[:len(playerDoc)/2], models.ErrCodeMalformedDocument},
		{"empty", "", models.ErrCodeMalformedDocument},
		{"html", "<html><body>error</body></html>", models.ErrCodeMalformedDocument},
		{"top-level array", `[{"playabilityStatus":{}}]`, models.ErrCodeMissingContainer},
		{"top-level null", `null`, models.ErrCodeMissingContainer},
		{"no playabilityStatus", `{"videoDetails":{"videoId":"x"}}`, models.ErrCodeMissingContainer},
		{"playabilityStatus not object", `{"playabilityStatus":"OK"}`, models.ErrCodeMissingContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Player([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.code, models.TransformCode(err))
		})
	}
}

func TestApply_Dispatch(t *testing.T) {
	_, err := Apply(route.Player, []byte(playerDoc))
	require.NoError(t, err)

	_, err = Apply(route.None, []byte(playerDoc))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeUnsupportedRoute, models.TransformCode(err))

	assert.Nil(t, For(route.None))
	assert.NotNil(t, For(route.Search))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
