// Package attachment fetches message attachments and classifies them as
// text (inlined into the prompt) or binary (passed to the completion
// backend out-of-band).
package attachment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"replique/internal/domain"
)

const maxAttachmentBytes = 25 * 1024 * 1024

// textExtensions is the allow-list of extensions treated as plain text
// regardless of the reported content type. Matched case-insensitively.
var textExtensions = map[string]struct{}{}

func init() {
	for _, ext := range []string{
		"txt", "js", "json", "json5", "md", "mdx", "html", "css", "xml",
		"csv", "log", "py", "rb", "java", "sh", "bat", "ps1", "cpp", "hpp",
		"h", "cs", "go", "rs", "sql", "toml", "yaml", "yml", "ini",
		"config", "props", "properties", "dockerfile", "makefile",
		"jenkinsfile", "gitconfig", "gitignore", "vue", "jsx", "ts", "tsx",
		"graphql", "proto", "thrift", "openapi", "rego", "tf", "tfvars",
		"hcl", "nomad", "zsh", "bash", "awk", "sed", "vim", "lock",
		"readme", "contributing",
	} {
		textExtensions[ext] = struct{}{}
	}
}

// Payload is a resolved attachment, scoped to one request.
type Payload struct {
	Text     string // set when Binary is false
	Data     []byte // set when Binary is true
	TypeTag  string // declared file type, for prompt labeling
	MIMEType string // as reported by the remote server
	Binary   bool
}

// Resolver fetches attachment bytes over HTTP and classifies them.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		client: newHTTPClient(60 * time.Second),
		logger: logger,
	}
}

// Resolve fetches ref and returns the classified payload. Failures are
// reported, not retried.
func (r *Resolver) Resolve(ctx context.Context, ref domain.AttachmentRef) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("attachment request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment %s: %w", ref.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attachment %s: server returned %d", ref.Name, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	ext := nameExtension(ref.Name)

	typeTag := ext
	if typeTag == "" {
		typeTag = primaryType(contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", ref.Name, err)
	}

	if isText(contentType, ext) {
		r.logger.Debug("attachment resolved as text", "name", ref.Name, "type", typeTag, "bytes", len(body))
		return &Payload{Text: string(body), TypeTag: typeTag, MIMEType: contentType}, nil
	}

	r.logger.Debug("attachment resolved as binary", "name", ref.Name, "type", typeTag, "bytes", len(body))
	return &Payload{Data: body, TypeTag: typeTag, MIMEType: contentType, Binary: true}, nil
}

// isText classifies an attachment: text content types always count, and so
// does any extension on the allow-list.
func isText(contentType, ext string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	_, ok := textExtensions[strings.ToLower(ext)]
	return ok
}

// nameExtension returns the segment after the last dot, or the whole name
// when there is no dot (covers extensionless files like Dockerfile).
func nameExtension(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}

// primaryType returns the first segment of a content-type header,
// e.g. "image" for "image/png; charset=binary".
func primaryType(contentType string) string {
	if i := strings.IndexAny(contentType, "/;"); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return strings.TrimSpace(contentType)
}
