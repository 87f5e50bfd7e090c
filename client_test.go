package devstore

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("DEVSTORE_DISABLE_ANALYTICS", "true")
	os.Exit(m.Run())
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUploadSave(t *testing.T) {
	saveFile := filepath.Join(t.TempDir(), "slot1.sav")
	require.NoError(t, os.WriteFile(saveFile, []byte("savegame"), 0o644))

	var gotSecret, gotProduct, gotFilename, gotMime string
	var gotArchive []byte
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/cloud-saves/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))

		gotSecret = r.FormValue("user_secret")
		gotProduct = r.FormValue("product_id")

		file, header, err := r.FormFile("save_file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotMime = header.Header.Get("Content-Type")
		gotArchive, err = io.ReadAll(file)
		require.NoError(t, err)

		w.Write([]byte(`{"message": "save stored"}`))
	}))

	ack, err := client.UploadSave(context.Background(), "my-game", "s3cret", saveFile)
	require.NoError(t, err)
	assert.Equal(t, "save stored", ack)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "my-game", gotProduct)
	assert.Equal(t, "XB_Save.zip", gotFilename)
	assert.Equal(t, "application/zip", gotMime)

	// The uploaded archive must contain the save under its base name.
	zr, err := zip.NewReader(bytes.NewReader(gotArchive), int64(len(gotArchive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "slot1.sav", zr.File[0].Name)
}

func TestUploadSaveNonJSONResponse(t *testing.T) {
	saveFile := filepath.Join(t.TempDir(), "a.sav")
	require.NoError(t, os.WriteFile(saveFile, []byte("x"), 0o644))

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stored"))
	}))

	ack, err := client.UploadSave(context.Background(), "pkg", "sec", saveFile)
	require.NoError(t, err)
	assert.Equal(t, "stored", ack)
}

func TestUploadSaveServerError(t *testing.T) {
	saveFile := filepath.Join(t.TempDir(), "a.sav")
	require.NoError(t, os.WriteFile(saveFile, []byte("x"), 0o644))

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad secret", http.StatusForbidden)
	}))

	_, err := client.UploadSave(context.Background(), "pkg", "sec", saveFile)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.Error(), "Upload failed")
}

func TestUploadSaveMissingParams(t *testing.T) {
	called := false
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.UploadSave(context.Background(), "", "sec", "path")
	require.ErrorIs(t, err, ErrMissingParam)

	_, err = client.UploadSave(context.Background(), "pkg", "", "path")
	require.ErrorIs(t, err, ErrMissingParam)

	_, err = client.UploadSave(context.Background(), "pkg", "sec", "")
	require.ErrorIs(t, err, ErrMissingParam)

	assert.False(t, called, "no request should be issued for invalid input")
}

func TestUploadSaveMissingPath(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	_, err := client.UploadSave(context.Background(), "pkg", "sec", filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrNoSuchPath)
}

func TestDownloadSave(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"slot1.sav":        "savegame",
		"nested/state.bin": "state",
	})

	var gotSecret, gotProduct string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/cloud-saves/", r.URL.Path)
		gotSecret = r.URL.Query().Get("user_secret")
		gotProduct = r.URL.Query().Get("product_id")
		w.Write(archive)
	}))

	dest := t.TempDir()
	require.NoError(t, client.DownloadSave(context.Background(), "my-game", "s3cret", dest))
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "my-game", gotProduct)

	data, err := os.ReadFile(filepath.Join(dest, "slot1.sav"))
	require.NoError(t, err)
	assert.Equal(t, "savegame", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "nested", "state.bin"))
	require.NoError(t, err)
	assert.Equal(t, "state", string(data))
}

func TestDownloadSaveServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no save found", http.StatusNotFound)
	}))

	err := client.DownloadSave(context.Background(), "pkg", "sec", t.TempDir())
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "Download failed")
}

func TestDownloadSaveCorruptArchive(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip"))
	}))

	err := client.DownloadSave(context.Background(), "pkg", "sec", t.TempDir())
	var ae *ArchiveError
	require.ErrorAs(t, err, &ae)
}

func TestUnreachableServerReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(WithBaseURL(url))

	saveFile := filepath.Join(t.TempDir(), "a.sav")
	require.NoError(t, os.WriteFile(saveFile, []byte("x"), 0o644))

	_, err := client.UploadSave(context.Background(), "pkg", "sec", saveFile)
	var re *RequestError
	require.ErrorAs(t, err, &re)

	err = client.DownloadSave(context.Background(), "pkg", "sec", t.TempDir())
	require.ErrorAs(t, err, &re)
}

func TestPackageVersion(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/version-hex/", r.URL.Path)
		require.Equal(t, "my-game", r.URL.Query().Get("product_id"))
		w.Write([]byte(`{"version": "0x2A"}`))
	}))

	v, err := client.PackageVersion(context.Background(), "my-game")
	require.NoError(t, err)
	assert.Equal(t, "0x2A", v)
}

func TestPackageVersionBareBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0x2A"))
	}))

	v, err := client.PackageVersion(context.Background(), "my-game")
	require.NoError(t, err)
	assert.Equal(t, "0x2A", v)
}

func TestUsername(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "s3cret", r.PostFormValue("user_secret"))
		w.Write([]byte(`{"status": "success", "username": "momo"}`))
	}))

	name, err := client.Username(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "momo", name)
}

func TestUsernameServerRejects(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "message": "unknown secret"}`))
	}))

	_, err := client.Username(context.Background(), "bad")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "unknown secret")
}

func TestUsernameMalformedResponse(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username": "momo"}`))
	}))

	_, err := client.Username(context.Background(), "sec")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "Missing status")
}

func TestOnline(t *testing.T) {
	cases := []struct {
		code  int
		state OnlineState
	}{
		{http.StatusOK, StateOnline},
		{http.StatusServiceUnavailable, StateMaintenance},
		{http.StatusTeapot, StateDegraded},
	}
	for _, tc := range cases {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/status-check", r.URL.Path)
			w.WriteHeader(tc.code)
		}))
		state, code, err := client.Online(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.state, state)
		assert.Equal(t, tc.code, code)
	}
}

func TestVerifyDownload(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify-download/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "my-game", r.PostFormValue("product_id"))
		w.Write([]byte(`{"status": "success"}`))
	}))
	require.NoError(t, client.VerifyDownload(context.Background(), "my-game"))
}

func TestVerifyDownloadRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "message": "checksum mismatch"}`))
	}))

	err := client.VerifyDownload(context.Background(), "my-game")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "checksum mismatch")
}

func TestVerifyDownloadGarbageResponse(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))

	err := client.VerifyDownload(context.Background(), "my-game")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "Invalid server response")
}

func TestSetBaseURL(t *testing.T) {
	client := NewClient()
	require.NoError(t, client.SetBaseURL("https://staging.example.com/api"))
	assert.Equal(t, "https://staging.example.com/api/", client.BaseURL())

	require.NoError(t, client.SetBaseURL("https://staging.example.com/api/"))
	assert.Equal(t, "https://staging.example.com/api/", client.BaseURL())

	err := client.SetBaseURL("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingParam))
}

func TestSetBaseURLRejectsNonHTTP(t *testing.T) {
	client := NewClient()
	before := client.BaseURL()

	for _, raw := range []string{
		"not a url",
		"ftp://host/api",
		"/just/a/path",
		"http://",
	} {
		err := client.SetBaseURL(raw)
		require.Error(t, err, "input %q", raw)
		assert.Contains(t, err.Error(), "Invalid custom_url parameter")
	}

	// Rejected inputs must leave the endpoint untouched.
	assert.Equal(t, before, client.BaseURL())
}
