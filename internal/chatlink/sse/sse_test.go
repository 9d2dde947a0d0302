package sse

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)

	require.NoError(t, w.WriteJSON(map[string]string{"content": "你好"}))
	require.NoError(t, w.WriteDone())

	out := buf.String()
	assert.Equal(t, "data: {\"content\":\"你好\"}\n\ndata: [DONE]\n\n", out)
}

func TestPrepareSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	w, err := Prepare(rec)
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
}

func TestPrepareRejectsNonFlusher(t *testing.T) {
	_, err := Prepare(nonFlushingResponseWriter{httptest.NewRecorder()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Flusher")
}

func TestPayload(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"data frame":    {`data: {"content":"hi"}`, `{"content":"hi"}`},
		"no space":      {`data:{"content":"hi"}`, `{"content":"hi"}`},
		"blank":         {"", ""},
		"done":          {"data: [DONE]", ""},
		"bare done":     {"[DONE]", ""},
		"comment line":  {": keep-alive", ""},
		"event line":    {"event: message", ""},
		"non json data": {"data: hello", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Payload([]byte(tc.line))
			if tc.want == "" {
				assert.Nil(t, got)
			} else {
				assert.Equal(t, tc.want, string(got))
			}
		})
	}
}

func TestScannerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.WriteJSON(map[string]string{"content": "第一段"}))
	require.NoError(t, w.WriteJSON(map[string]string{"content": "第二段"}))
	require.NoError(t, w.WriteDone())

	sc := NewScanner(&buf)
	var payloads []string
	for sc.Scan() {
		payloads = append(payloads, string(sc.Bytes()))
	}

	require.NoError(t, sc.Err())
	assert.True(t, sc.Done(), "sentinel must be observed")
	require.Len(t, payloads, 2)
	assert.JSONEq(t, `{"content":"第一段"}`, payloads[0])
	assert.JSONEq(t, `{"content":"第二段"}`, payloads[1])
}

func TestScannerStopsAtSentinel(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"b\":2}\n\n"

	sc := NewScanner(strings.NewReader(input))
	var count int
	for sc.Scan() {
		count++
	}

	assert.Equal(t, 1, count, "frames after the sentinel must be ignored")
	assert.True(t, sc.Done())
}

func TestScannerWithoutSentinel(t *testing.T) {
	sc := NewScanner(strings.NewReader("data: {\"a\":1}\n\n"))
	require.True(t, sc.Scan())
	require.False(t, sc.Scan())
	assert.False(t, sc.Done(), "truncated streams end without the sentinel")
	assert.NoError(t, sc.Err())
}

// nonFlushingResponseWriter hides the recorder's Flush method.
type nonFlushingResponseWriter struct{ rec *httptest.ResponseRecorder }

func (w nonFlushingResponseWriter) Header() http.Header         { return w.rec.Header() }
func (w nonFlushingResponseWriter) Write(b []byte) (int, error) { return w.rec.Write(b) }
func (w nonFlushingResponseWriter) WriteHeader(statusCode int)  { w.rec.WriteHeader(statusCode) }
