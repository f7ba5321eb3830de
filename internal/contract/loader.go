package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"ethhelper/internal/config"
)

const maxArtifactSize = 32 << 20

type Loader struct {
	cfg    *config.Config
	http   *http.Client
	logger *slog.Logger
}

func NewLoader(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, http: httpClient, logger: logger}
}

// Load fetches the named contract from release when it is set and from the
// local build directory otherwise.
func (l *Loader) Load(ctx context.Context, name, release string) (*Artifact, error) {
	if release != "" {
		return l.LoadRelease(ctx, name, release)
	}
	abiPath, binPath := l.cfg.ContractPaths(name)
	return LoadFiles(name, abiPath, binPath)
}

func LoadFiles(name, abiPath, binPath string) (*Artifact, error) {
	abiJSON, err := readArtifactFile(abiPath)
	if err != nil {
		return nil, err
	}
	bin, err := readArtifactFile(binPath)
	if err != nil {
		return nil, err
	}
	return ParseArtifact(name, abiJSON, bin)
}

func readArtifactFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ArtifactNotFoundError{Path: path, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Loader) LoadRelease(ctx context.Context, name, release string) (*Artifact, error) {
	if l.cfg.ReleaseURL == "" {
		return nil, errors.New("releaseUrl is not configured")
	}
	abiJSON, err := l.fetch(ctx, l.releaseURL(release, name+".abi"))
	if err != nil {
		return nil, err
	}
	bin, err := l.fetch(ctx, l.releaseURL(release, name+".bin"))
	if err != nil {
		return nil, err
	}
	return ParseArtifact(name, abiJSON, bin)
}

func (l *Loader) releaseURL(release, file string) string {
	return strings.NewReplacer("{version}", release, "{contract}", file).Replace(l.cfg.ReleaseURL)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("fetching contract artifact", "url", url)
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
}
