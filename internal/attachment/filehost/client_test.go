package filehost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/attachment"
)

func TestUploadSendsMultipartForm(t *testing.T) {
	var gotPath, gotPreset, gotFolder, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPreset = r.FormValue("upload_preset")
		gotFolder = r.FormValue("folder")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		gotFile = string(b)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://cdn/etatcivil/acte.pdf","public_id":"etatcivil/acte"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", "", "unsigned")
	hosted, err := c.Upload(context.Background(), attachment.Upload{
		Filename: "acte.pdf",
		Size:     7,
		Body:     strings.NewReader("%PDF-1."),
		Folder:   "etatcivil/declarations",
	})

	require.NoError(t, err)
	assert.Equal(t, "/demo/auto/upload", gotPath)
	assert.Equal(t, "unsigned", gotPreset)
	assert.Equal(t, "etatcivil/declarations", gotFolder)
	assert.Equal(t, "%PDF-1.", gotFile)
	assert.Equal(t, "https://cdn/etatcivil/acte.pdf", hosted.URL)
	assert.Equal(t, "etatcivil/acte", hosted.PublicID)
}

func TestUploadReportsHostError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid upload preset"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "demo", "", "bad").Upload(context.Background(), attachment.Upload{
		Filename: "a.pdf",
		Body:     strings.NewReader("x"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid upload preset")
}
