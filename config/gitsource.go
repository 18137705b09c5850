package config

import (
	"io"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/tim-schneider/nexsync/faults"
)

const defaultGitConfigPath = "nexsync.yaml"

// gitSource addresses a configuration file inside a git repository:
// git+URL[#ref][//path]. The repository is cloned into memory; nothing
// touches the local filesystem.
type gitSource struct {
	URL  string
	Ref  string
	Path string
}

func parseGitSource(source string) (gitSource, error) {
	trimmed := strings.TrimPrefix(source, "git+")

	parsed := gitSource{Path: defaultGitConfigPath}

	// The "//" path separator appears after the scheme's own "://".
	schemeEnd := strings.Index(trimmed, "://")
	rest := trimmed
	offset := 0
	if schemeEnd >= 0 {
		offset = schemeEnd + 3
		rest = trimmed[offset:]
	}
	if idx := strings.Index(rest, "//"); idx >= 0 {
		parsed.Path = strings.TrimPrefix(rest[idx+2:], "/")
		trimmed = trimmed[:offset+idx]
	}
	if url, ref, found := strings.Cut(trimmed, "#"); found {
		parsed.URL = url
		parsed.Ref = ref
	} else {
		parsed.URL = trimmed
	}

	if strings.TrimSpace(parsed.URL) == "" {
		return gitSource{}, faults.NewTypedError(faults.ValidationError, "git config source requires a repository URL", nil)
	}
	if strings.TrimSpace(parsed.Path) == "" {
		parsed.Path = defaultGitConfigPath
	}
	return parsed, nil
}

func loadFromGit(source string) (*Config, error) {
	parsed, err := parseGitSource(source)
	if err != nil {
		return nil, err
	}

	worktree := memfs.New()
	options := &git.CloneOptions{
		URL:          parsed.URL,
		Depth:        1,
		SingleBranch: true,
	}
	if parsed.Ref != "" {
		options.ReferenceName = plumbing.NewBranchReferenceName(parsed.Ref)
	}

	if _, err := git.Clone(memory.NewStorage(), worktree, options); err != nil {
		return nil, faults.NewTypedError(faults.TransportError, "git config source could not be cloned", err)
	}

	file, err := worktree.Open(parsed.Path)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "git config source path could not be opened", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, faults.NewTypedError(faults.TransportError, "git config source could not be read", err)
	}
	return Parse(raw)
}
