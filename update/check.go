// Package update checks GitHub releases for a newer ratchetwatch build.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// Release is the latest published release and the asset for this platform.
type Release struct {
	Tag      string
	AssetURL string
	// Newer is set only when Tag is a higher semantic version than the
	// running build. Dev builds and unparseable tags never report newer.
	Newer bool
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Checker queries the releases of one repository.
type Checker struct {
	BaseURL    string
	Owner      string
	Repo       string
	Current    string
	HTTPClient *http.Client
}

// NewChecker returns a Checker for the ratchetwatch repository.
func NewChecker(current string) *Checker {
	return &Checker{
		BaseURL:    DefaultBaseURL,
		Owner:      "GoCodeAlone",
		Repo:       "ratchetwatch",
		Current:    current,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// canonical returns v as a "v"-prefixed semantic version, or "" when it is
// not one (e.g. "dev").
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// Latest fetches the latest release.
func (c *Checker) Latest(ctx context.Context) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(c.BaseURL, "/"), c.Owner, c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "ratchetwatch/"+c.Current)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("github API returned %d", resp.StatusCode)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Release{}, fmt.Errorf("decode release: %w", err)
	}

	out := Release{Tag: rel.TagName}
	latest, current := canonical(rel.TagName), canonical(c.Current)
	out.Newer = latest != "" && current != "" && semver.Compare(latest, current) > 0

	goarch := runtime.GOARCH
	if goarch == "amd64" {
		goarch = "x86_64"
	}
	for _, a := range rel.Assets {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, runtime.GOOS) && strings.Contains(name, goarch) {
			out.AssetURL = a.BrowserDownloadURL
			break
		}
	}
	return out, nil
}
