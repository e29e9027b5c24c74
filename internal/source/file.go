package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
)

// FileSource serves activity payloads from the local filesystem.
type FileSource struct{}

// NewFileSource builds a FileSource.
func NewFileSource() *FileSource {
	return &FileSource{}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Matches(uri string) bool {
	return matchesURI(uri, SchemeFile, nil)
}

func (s *FileSource) Read(_ context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != SchemeFile {
		return nil, fmt.Errorf("invalid URI: %s", uri)
	}
	path := parsed.Path
	if parsed.Host != "" {
		// file://relative/path puts the first segment in the host.
		path = parsed.Host + parsed.Path
	}
	return os.ReadFile(path)
}

func (s *FileSource) FindByFingerprint(context.Context, Fingerprint) (string, error) {
	return "", nil
}
