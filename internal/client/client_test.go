package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wearlog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitWear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/wear", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.Equal(t, "extra", r.Header.Get("x-api-extra"))

		var body struct {
			ClothesIDs []string `json:"clothesIds"`
			Date       string   `json:"date"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.ClothesIDs)
		assert.Equal(t, "2026-08-27", body.Date)

		json.NewEncoder(w).Encode(models.SyncResult{
			Items:      []models.Item{{ID: "a", WearCount: 3}, {ID: "b", WearCount: 1}},
			WearEvents: []models.WearEvent{{ID: "e1", ItemID: "a"}, {ID: "e2", ItemID: "b"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "extra")
	res, err := c.SubmitWear(context.Background(), []string{"a", "b"}, "2026-08-27")
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Len(t, res.WearEvents, 2)
	assert.Equal(t, int64(3), res.Items[0].WearCount)
}

func TestSubmitWashErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown item"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	_, err := c.SubmitWash(context.Background(), []string{"nope"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown item")
}

func TestListItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/items", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"items": []models.Item{{ID: "x", Name: "Blue shirt"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	items, err := c.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Blue shirt", items[0].Name)
}
