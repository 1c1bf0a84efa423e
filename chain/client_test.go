package chain_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumsystem/nft-bbs-sub001/chain"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/feed/feed-a/records", r.URL.Path)
		assert.Equal(t, "trx-000", r.URL.Query().Get("start"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{
			"records": [
				{
					"id": "trx-001",
					"sender": "alice",
					"timestamp": 1700000000000000000,
					"type": "post",
					"content": {"id": "p1", "name": "Hello", "content": "First"}
				},
				{
					"id": "trx-002",
					"sender": "bob",
					"timestamp": 1700000001000000000,
					"type": "comment",
					"content": {"id": "c1", "content": "Nice", "objectId": "p1"}
				}
			]
		}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	records, next, err := client.Fetch(context.Background(), "feed-a", "trx-000", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "trx-002", next)

	assert.Equal(t, "trx-001", records[0].ID)
	assert.Equal(t, "alice", records[0].Sender)
	post, ok := records[0].Content.(models.PostContent)
	require.True(t, ok)
	assert.Equal(t, "Hello", post.Title)

	comment, ok := records[1].Content.(models.CommentContent)
	require.True(t, ok)
	assert.Equal(t, "p1", comment.ObjectID)
}

func TestClientFetchEmptyKeepsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"records": []}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	records, next, err := client.Fetch(context.Background(), "feed-a", "trx-042", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "trx-042", next)
}

func TestClientFetchSkipsUnattributedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{
			"records": [
				{"id": "", "sender": "alice", "type": "post", "content": {}},
				{"id": "trx-002", "sender": "", "type": "post", "content": {}},
				{
					"id": "trx-003",
					"sender": "alice",
					"timestamp": 1700000000000000000,
					"type": "post",
					"content": {"id": "p1", "content": "ok"}
				}
			]
		}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	records, next, err := client.Fetch(context.Background(), "feed-a", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "trx-003", records[0].ID)
	assert.Equal(t, "trx-003", next)
}

func TestClientFetchMalformedContentIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{
			"records": [
				{
					"id": "trx-001",
					"sender": "alice",
					"timestamp": 1700000000000000000,
					"type": "poll",
					"content": {"question": "?"}
				}
			]
		}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	records, _, err := client.Fetch(context.Background(), "feed-a", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	malformed, ok := records[0].Content.(models.MalformedContent)
	require.True(t, ok)
	assert.Equal(t, "poll", malformed.Type)
}

func TestClientFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	_, next, err := client.Fetch(context.Background(), "feed-a", "trx-042", 10)
	assert.Error(t, err)
	assert.Equal(t, "trx-042", next)
}

func TestClientRequiresAPIBase(t *testing.T) {
	_, err := chain.NewClient(chain.ClientConfig{})
	assert.Error(t, err)
}

func TestClientFetchBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"records": [`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	client, err := chain.NewClient(chain.ClientConfig{APIBase: server.URL})
	require.NoError(t, err)

	_, _, err = client.Fetch(context.Background(), "feed-a", "", 10)
	assert.Error(t, err)
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}
