package ingestion_engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/markdave123-py/quickread/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDJSONEmitter_WritesOneLinePerPage(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewNDJSONEmitter(rec)
	assert.False(t, em.Started())

	require.NoError(t, em.Emit(models.PageRecord{PageIndex: 1, TotalPages: 2, Text: "alpha", Status: models.PageStatusOK}))
	assert.True(t, em.Started())
	require.NoError(t, em.Emit(models.PageRecord{PageIndex: 2, TotalPages: 2, RawText: "raw", Status: models.PageStatusFailed}))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	var events []models.PageEvent
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		var ev models.PageEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, models.PageEvent{PageIndex: 1, TotalPages: 2, Text: "alpha"}, events[0])
	assert.Equal(t, models.PageEvent{PageIndex: 2, TotalPages: 2, Text: ""}, events[1])
	assert.NotContains(t, rec.Body.String(), "raw")
}

func TestNDJSONEmitter_FailBeforeStartWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewNDJSONEmitter(rec)

	require.NoError(t, em.Fail(errors.New("boom")))
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestNDJSONEmitter_FailAfterStartWritesErrorLine(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewNDJSONEmitter(rec)
	require.NoError(t, em.Emit(models.PageRecord{PageIndex: 1, TotalPages: 3, Status: models.PageStatusEmpty}))

	require.NoError(t, em.Fail(ErrNoExtractableText))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"error":"no extractable text"}`, lines[1])
}

func TestAggregateEmitter_OneEntryPerPage(t *testing.T) {
	em := NewAggregateEmitter()
	for i, text := range []string{"first page text", "", "third page text"} {
		require.NoError(t, em.Emit(models.PageRecord{PageIndex: i + 1, TotalPages: 3, Text: text}))
	}

	resp := em.Response()
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []string{"first page text", "", "third page text"}, resp.Pages)
}

func TestAggregateEmitter_EmptyResponseHasArray(t *testing.T) {
	body, err := json.Marshal(NewAggregateEmitter().Response())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","pages":[],"total":0}`, string(body))
}
