package garmin

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTokenFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "garminconnect.json")
	payload, err := json.Marshal(tokenFilePayload{
		AccessToken: "cached-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	return path
}

func zipPayload(t *testing.T, name string, content []byte) []byte {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	file, err := writer.Create(name)
	require.NoError(t, err)
	_, err = file.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDownloadActivityUnwrapsArchive(t *testing.T) {
	archive := zipPayload(t, "19732762518_ACTIVITY.fit", []byte("fit payload"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/download-service/files/activity/19732762518", r.URL.Path)
		require.Equal(t, "Bearer cached-token", r.Header.Get("Authorization"))
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	client := NewClient("user", "pass", writeTokenFile(t), WithBaseURLs(server.URL, server.URL))

	data, err := client.DownloadActivity(context.Background(), "19732762518")
	require.NoError(t, err)
	require.Equal(t, []byte("fit payload"), data)
}

func TestDownloadActivityRejectsMultiFileArchive(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, name := range []string{"a.fit", "b.fit"} {
		file, err := writer.Create(name)
		require.NoError(t, err)
		_, err = file.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	_, err := extractSingleFile(buf.Bytes())
	require.ErrorContains(t, err, "expected one file")
}

func TestActivitiesByDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/activitylist-service/activities/search/activities", r.URL.Path)
		require.Equal(t, "2025-06-14", r.URL.Query().Get("startDate"))
		require.Equal(t, "2025-06-15", r.URL.Query().Get("endDate"))
		fmt.Fprint(w, `[
			{"activityId":19732762518,"duration":3580.2,"distance":50080.7},
			{"activityId":19732762519,"duration":1200,"distance":10000}
		]`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("user", "pass", writeTokenFile(t), WithBaseURLs(server.URL, server.URL))

	from := time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC)
	activities, err := client.ActivitiesByDate(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, int64(19732762518), activities[0].ID)
	require.InDelta(t, 3580.2, activities[0].Duration, 1e-9)
	require.InDelta(t, 50080.7, activities[0].Distance, 1e-9)
}

func TestBearerPrefersTokenFileOverLogin(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(server.Close)

	client := NewClient("user", "pass", writeTokenFile(t), WithBaseURLs(server.URL, server.URL))

	token, err := client.bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cached-token", token)
	require.Zero(t, requests)
}
