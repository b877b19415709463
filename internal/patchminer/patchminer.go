// Package patchminer is the Patch-Target Miner collaborator: it turns a
// vulnerability identifier (an OSV id, or a bare CVE) into the set of
// function names its patch touched, by walking OSV -> NVD -> GitHub PR/
// commit diff and scanning the diff for removed definitions (spec.md §6,
// grounded on patch_extractor.py).
package patchminer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/github"
)

// Miner is the Patch-Target Miner. The zero value is usable; Client lets
// tests substitute http.DefaultClient with a fake transport.
type Miner struct {
	Client *http.Client
	GitHub *github.Client
}

// New returns a Miner backed by the default HTTP client and an
// unauthenticated GitHub client (sufficient for public diff fetches).
func New() *Miner {
	return &Miner{Client: http.DefaultClient, GitHub: github.NewClient(nil)}
}

func (m *Miner) httpClient() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return http.DefaultClient
}

// FindTargets implements find_targets(vuln-id) -> list<name>. vulnID may
// be a bare CVE ("CVE-2023-...") or an OSV id ("GHSA-...", "PYSEC-...").
func (m *Miner) FindTargets(ctx context.Context, vulnID string) ([]string, error) {
	var diffURLs []string
	var err error
	if strings.HasPrefix(vulnID, "CVE-") {
		diffURLs, err = m.referencesFromNVD(ctx, vulnID)
	} else {
		diffURLs, err = m.referencesFromOSV(ctx, vulnID)
	}
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var targets []string
	for _, url := range diffURLs {
		diff, err := m.fetchDiff(ctx, url)
		if err != nil {
			continue // a single unreachable reference doesn't fail the whole lookup
		}
		for _, name := range findTargetsInString(diff) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			targets = append(targets, name)
		}
	}
	return targets, nil
}

// osvEntry is the subset of an OSV API response this miner reads.
type osvEntry struct {
	Aliases []string `json:"aliases"`
}

// referencesFromOSV implements find_targets_in_osv_entry: hop to NVD via
// the first CVE alias of the OSV record. The record's own `references`
// are not read, so an OSV entry with no CVE alias yields no references.
func (m *Miner) referencesFromOSV(ctx context.Context, osvID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.osv.dev/v1/vulns/"+osvID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("osv lookup %s: %w", osvID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var entry osvEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("decode osv entry %s: %w", osvID, err)
	}
	for _, alias := range entry.Aliases {
		if strings.HasPrefix(alias, "CVE-") {
			return m.referencesFromNVD(ctx, alias)
		}
	}
	return nil, nil
}

// nvdResponse is the subset of the NVD REST API response this miner
// reads: a flat list of GitHub PR/commit reference URLs.
type nvdResponse struct {
	Result struct {
		CVEItems []struct {
			Cve struct {
				References struct {
					ReferenceData []struct {
						URL string `json:"url"`
					} `json:"reference_data"`
				} `json:"references"`
			} `json:"cve"`
		} `json:"CVE_Items"`
	} `json:"result"`
}

// referencesFromNVD implements find_targets_in_ndv_entry.
func (m *Miner) referencesFromNVD(ctx context.Context, cveID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://services.nvd.nist.gov/rest/json/cve/1.0/"+cveID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvd lookup %s: %w", cveID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var nvd nvdResponse
	if err := json.Unmarshal(body, &nvd); err != nil {
		return nil, fmt.Errorf("decode nvd entry %s: %w", cveID, err)
	}

	var out []string
	for _, item := range nvd.Result.CVEItems {
		for _, ref := range item.Cve.References.ReferenceData {
			if strings.Contains(ref.URL, "github.com") &&
				(strings.Contains(ref.URL, "/pull/") || strings.Contains(ref.URL, "/commit/")) {
				out = append(out, ref.URL)
			}
		}
	}
	return out, nil
}

// fetchDiff implements find_targets_in_github_pull_request_or_commit: it
// fetches the raw unified diff for a GitHub PR or commit URL, using
// go-github's raw-content accessors so redirects/auth/pagination are
// handled the same way golang.org/x/vuln's own GitHub access is.
func (m *Miner) fetchDiff(ctx context.Context, refURL string) (string, error) {
	owner, repo, kind, ref, ok := parseGitHubRefURL(refURL)
	if !ok {
		return m.fetchRawDiffURL(ctx, refURL)
	}
	gh := m.GitHub
	if gh == nil {
		gh = github.NewClient(m.httpClient())
	}
	switch kind {
	case "pull":
		n, err := strconv.Atoi(ref)
		if err != nil {
			return m.fetchRawDiffURL(ctx, refURL)
		}
		raw, _, err := gh.PullRequests.GetRaw(ctx, owner, repo, n, github.RawOptions{Type: github.Diff})
		if err != nil {
			return "", fmt.Errorf("fetch pr diff %s: %w", refURL, err)
		}
		return raw, nil
	case "commit":
		raw, _, err := gh.Repositories.GetCommitRaw(ctx, owner, repo, ref, github.RawOptions{Type: github.Diff})
		if err != nil {
			return "", fmt.Errorf("fetch commit diff %s: %w", refURL, err)
		}
		return raw, nil
	default:
		return m.fetchRawDiffURL(ctx, refURL)
	}
}

// fetchRawDiffURL falls back to appending ".diff" and GETting it directly,
// matching the original's handling of URLs it can't otherwise classify.
func (m *Miner) fetchRawDiffURL(ctx context.Context, refURL string) (string, error) {
	url := refURL
	if !strings.HasSuffix(url, ".diff") {
		url += ".diff"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch diff %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// findTargetsInString implements find_targets_in_string: scan a unified
// diff for removed ("-"-prefixed) function/method definitions, carrying a
// tentative definition name forward from a hunk header when present.
func findTargetsInString(diff string) []string {
	var out []string
	var tentative string
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "@@ "):
			if name, ok := defNameIn(line); ok {
				tentative = name
			}
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			body := strings.TrimPrefix(line, "-")
			if name, ok := defNameIn(body); ok {
				out = append(out, name)
			} else if tentative != "" {
				out = append(out, tentative)
				tentative = ""
			}
		}
	}
	return out
}

// defNameIn finds a `def name(` or `cdef name(` declaration in a line and
// returns the declared name.
func defNameIn(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, kw := range []string{"def ", "cdef "} {
		idx := strings.Index(trimmed, kw)
		if idx == -1 {
			continue
		}
		rest := strings.TrimSpace(trimmed[idx+len(kw):])
		if paren := strings.Index(rest, "("); paren > 0 {
			return strings.TrimSpace(rest[:paren]), true
		}
	}
	return "", false
}

// parseGitHubRefURL splits a github.com PR/commit reference URL into its
// owner, repo, kind ("pull"|"commit"), and the PR number or commit SHA.
func parseGitHubRefURL(refURL string) (owner, repo, kind, ref string, ok bool) {
	const prefix = "github.com/"
	i := strings.Index(refURL, prefix)
	if i == -1 {
		return "", "", "", "", false
	}
	rest := refURL[i+len(prefix):]
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) < 4 {
		return "", "", "", "", false
	}
	owner, repo, kind = parts[0], parts[1], parts[2]
	if kind != "pull" && kind != "commit" {
		return "", "", "", "", false
	}
	return owner, repo, kind, parts[3], true
}
