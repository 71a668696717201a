// Package declsource loads entity declaration documents from files, stdin or S3.
//
// Documents are YAML (JSON is accepted as a YAML subset) with a namespace and a list of
// entities. Keys are decoded strictly: unknown options are reported instead of ignored.
package declsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"entitymeta/internal/metadata"
)

// Stdin is the source name that reads the document from standard input.
const Stdin = "-"

const s3Scheme = "s3://"

// Loader reads declaration documents by source name.
type Loader struct {
	stdin    io.Reader
	s3       ObjectGetter
	s3Config S3Config
}

// Option configures a Loader.
type Option func(*Loader)

// WithStdin replaces os.Stdin as the "-" source.
func WithStdin(r io.Reader) Option {
	return func(l *Loader) { l.stdin = r }
}

// WithS3Client sets the client used for s3:// sources. Without it a client is built from
// the S3Config on first use.
func WithS3Client(c ObjectGetter) Option {
	return func(l *Loader) { l.s3 = c }
}

// WithS3Config sets how the default S3 client is built.
func WithS3Config(cfg S3Config) Option {
	return func(l *Loader) { l.s3Config = cfg }
}

// New returns a loader reading stdin from os.Stdin.
func New(opts ...Option) *Loader {
	l := &Loader{stdin: os.Stdin}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the document named by source: a file path, "-" for stdin,
// or s3://bucket/key.
func (l *Loader) Load(ctx context.Context, source string) (metadata.Document, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return metadata.Document{}, err
	}
	doc, err := Parse(data)
	if err != nil {
		return metadata.Document{}, fmt.Errorf("failed to load declarations from %s: %w", source, err)
	}
	return doc, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, errors.New("declaration source is required")
	case source == Stdin:
		data, err := io.ReadAll(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read declarations from stdin: %w", err)
		}
		return data, nil
	case strings.HasPrefix(source, s3Scheme):
		bucket, key, err := ParseS3URI(source)
		if err != nil {
			return nil, err
		}
		client := l.s3
		if client == nil {
			client, err = NewS3Client(ctx, l.s3Config)
			if err != nil {
				return nil, err
			}
			l.s3 = client
		}
		return readObject(ctx, client, bucket, key)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read declarations file %s: %w", source, err)
		}
		return data, nil
	}
}

// Parse decodes a YAML or JSON declaration document.
func Parse(data []byte) (metadata.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return metadata.Document{}, errors.New("declaration document is empty")
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return metadata.Document{}, fmt.Errorf("failed to parse declaration YAML: %w", err)
	}
	return Decode(raw)
}

// Decode maps an already parsed document onto metadata.Document.
func Decode(raw map[string]any) (metadata.Document, error) {
	var doc metadata.Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return metadata.Document{}, fmt.Errorf("failed to create declaration decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return metadata.Document{}, fmt.Errorf("failed to decode declarations: %w", err)
	}
	if len(doc.Entities) == 0 {
		return metadata.Document{}, errors.New("declaration document has no entities")
	}
	for i, e := range doc.Entities {
		if strings.TrimSpace(e.Name) == "" {
			return metadata.Document{}, fmt.Errorf("entity %d has no name", i)
		}
	}
	return doc, nil
}
