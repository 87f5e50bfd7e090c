package devstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// currentVersionFile records which extracted update directory is the
// active one.
const currentVersionFile = "current_version.json"

// DownloadUpdate fetches the latest patch archive for a package and
// extracts it into a fresh directory under the SDK data dir. The
// extraction path is returned and recorded in current_version.json.
func (c *Client) DownloadUpdate(ctx context.Context, packageID string) (string, error) {
	if err := requireParams(param{"package_id", packageID}); err != nil {
		return "", err
	}

	endpoint := c.endpoint("get_latest_patch/")
	resp, err := c.postForm(ctx, endpoint, url.Values{"product_id": {packageID}})
	if err != nil {
		return "", &RequestError{Op: "update", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Op: "update", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Request failed: %s", readBodyText(resp.Body))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Op: "update", URL: endpoint, Err: err}
	}

	updatePath := nextUpdateDir(dataDir())
	if err := os.MkdirAll(updatePath, 0o755); err != nil {
		return "", &ArchiveError{Path: updatePath, Err: err}
	}
	if err := extractArchive(data, updatePath); err != nil {
		return "", err
	}

	recordCurrentVersion(updatePath)
	trackEvent("update_downloaded", nil)
	return updatePath, nil
}

// nextUpdateDir picks an unused extraction directory: "update" when
// free, otherwise "update_<suffix>" with a random suffix.
func nextUpdateDir(base string) string {
	candidate := filepath.Join(base, "update")
	for {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(base, "update_"+uuid.NewString()[:8])
	}
}

// recordCurrentVersion is best effort; a failed write leaves the
// previous pointer in place.
func recordCurrentVersion(path string) {
	payload := struct {
		Path string `json:"path"`
	}{Path: path}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dataDir(), currentVersionFile), data, 0o644)
}

// CurrentUpdatePath returns the recorded active update directory, or
// "" when no update has been downloaded.
func CurrentUpdatePath() string {
	data, err := os.ReadFile(filepath.Join(dataDir(), currentVersionFile))
	if err != nil {
		return ""
	}
	var payload struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Path
}
