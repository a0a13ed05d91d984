package pypi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReleaseFile is one downloadable distribution file of a release.
type ReleaseFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	PackageType string `json:"packagetype"` // "bdist_wheel" or "sdist"
	Size        int64  `json:"size"`
	Yanked      bool   `json:"yanked"`
}

// Release identifies the distribution file selected for a project's release.
type Release struct {
	Project string
	Version string
	File    ReleaseFile
}

// projectDoc mirrors the subset of the index JSON API document we consume.
type projectDoc struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	Releases map[string][]ReleaseFile `json:"releases"`
}

// ReleasePolicy selects which release of a project counts as "latest".
type ReleasePolicy string

const (
	// ReleasePolicyIndex trusts the version the index itself advertises as
	// latest (info.version). This can be a pre-release if the project has
	// published nothing newer.
	ReleasePolicyIndex ReleasePolicy = "index"

	// ReleasePolicyStable picks the highest final release (plain dotted
	// numeric version), ignoring pre-releases and dev builds.
	ReleasePolicyStable ReleasePolicy = "stable"
)

func (p ReleasePolicy) valid() bool {
	return p == ReleasePolicyIndex || p == ReleasePolicyStable
}

var finalVersion = regexp.MustCompile(`^\d+(\.\d+)*$`)

// selectVersion picks the release version for doc according to policy.
// Returns ErrNoArtifact when nothing qualifies.
func selectVersion(doc *projectDoc, policy ReleasePolicy) (string, error) {
	switch policy {
	case ReleasePolicyStable:
		best := ""
		for v, files := range doc.Releases {
			if len(files) == 0 || !finalVersion.MatchString(v) {
				continue
			}
			if best == "" || compareVersions(v, best) > 0 {
				best = v
			}
		}
		if best == "" {
			// No final release published; fall back to the advertised one.
			break
		}
		return best, nil
	case ReleasePolicyIndex:
	default:
		return "", fmt.Errorf("unknown release policy %q", policy)
	}

	if doc.Info.Version == "" {
		return "", ErrNoArtifact
	}
	return doc.Info.Version, nil
}

// compareVersions orders plain dotted numeric versions. Missing components
// count as zero, so 1.2 == 1.2.0.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// selectFile picks the representative distribution file for a release.
// Wheels are preferred over sdists: their file listings are deterministic and
// platform independent. Yanked files are skipped unless nothing else remains.
func selectFile(files []ReleaseFile) (ReleaseFile, bool) {
	pick := func(skipYanked bool) (ReleaseFile, bool) {
		var sdist ReleaseFile
		var haveSdist bool
		for _, f := range files {
			if skipYanked && f.Yanked {
				continue
			}
			switch f.PackageType {
			case "bdist_wheel":
				return f, true
			case "sdist":
				if !haveSdist {
					sdist = f
					haveSdist = true
				}
			}
		}
		return sdist, haveSdist
	}

	if f, ok := pick(true); ok {
		return f, true
	}
	return pick(false)
}
