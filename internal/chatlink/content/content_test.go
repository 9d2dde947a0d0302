package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleSystem.Valid())
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestJoinedText(t *testing.T) {
	flat := TextMessage(RoleAssistant, "好的")
	assert.Equal(t, "好的", flat.JoinedText())

	mixed := BlockMessage(RoleUser,
		TextBlock("看看"),
		ImageBlock("data:image/png;base64,AAAA"),
		TextBlock("这张图"),
	)
	assert.Equal(t, "看看 这张图", mixed.JoinedText())

	mediaOnly := BlockMessage(RoleUser, VideoBlock("data:;base64,BBBB"))
	assert.Empty(t, mediaOnly.JoinedText())
}

func TestBlockJSON(t *testing.T) {
	cases := map[string]struct {
		block Block
		want  string
	}{
		"text": {TextBlock("你好"), `{"type":"text","text":"你好"}`},
		"image": {ImageBlock("data:image/png;base64,AAAA"),
			`{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}`},
		"audio": {AudioBlock("data:;base64,BBBB", "wav"),
			`{"type":"input_audio","input_audio":{"data":"data:;base64,BBBB","format":"wav"}}`},
		"video": {VideoBlock("data:;base64,CCCC"),
			`{"type":"video_url","video_url":{"url":"data:;base64,CCCC"}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			encoded, err := json.Marshal(tc.block)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(encoded))
		})
	}
}

func TestIsBlockForm(t *testing.T) {
	assert.False(t, TextMessage(RoleUser, "你好").IsBlockForm())
	assert.True(t, BlockMessage(RoleUser, TextBlock("你好")).IsBlockForm())
}
