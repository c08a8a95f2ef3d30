package fixture

import (
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func init() {
	// Not every platform's mime table knows yaml.
	_ = mime.AddExtensionType(".yaml", "text/yaml")
	_ = mime.AddExtensionType(".yml", "text/yaml")
	_ = mime.AddExtensionType(".har", "application/json")
}

const defaultContentType = "application/octet-stream"

// Resource is a single fixture served at one route. Exactly one of Body and
// File must be set. File is read on every request.
type Resource struct {
	Body        []byte `json:"-" yaml:"-"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Attachment, when set, asks the browser to download the response under
	// this file name instead of rendering it.
	Attachment string `json:"attachment,omitempty" yaml:"attachment,omitempty"`

	// Set overrides values in a JSON body. Keys are JSONPath expressions and
	// may match several nodes, e.g. "$.entries[*].id".
	Set map[string]any `json:"set,omitempty" yaml:"set,omitempty"`
}

func Text(body, contentType string) Resource {
	return Resource{Body: []byte(body), ContentType: contentType}
}

func HTML(body string) Resource {
	return Text(body, "text/html; charset=utf-8")
}

func FromFile(file string) Resource {
	return Resource{File: file}
}

func (r Resource) validate(route string) error {
	switch {
	case r.Body != nil && r.File != "":
		return fmt.Errorf("route %s: body and file are mutually exclusive", route)
	case r.Body == nil && r.File == "":
		return fmt.Errorf("route %s: neither body nor file set", route)
	case len(r.Set) > 0 && r.File != "":
		return fmt.Errorf("route %s: overrides need an inline body", route)
	}
	return nil
}

func (r Resource) contentType(route string) string {
	if r.ContentType != "" {
		return r.ContentType
	}
	for _, name := range []string{r.File, route} {
		if ext := path.Ext(filepath.ToSlash(name)); ext != "" {
			if ct := mime.TypeByExtension(ext); ct != "" {
				return ct
			}
		}
	}
	return defaultContentType
}

// content returns the bytes to serve. Errors become a 500 response.
func (r Resource) content() ([]byte, error) {
	if r.File == "" {
		return r.Body, nil
	}
	return os.ReadFile(r.File)
}

func (r Resource) contentDisposition() string {
	if r.Attachment == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": r.Attachment})
}

func validateRoute(route string) error {
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("route %q must start with /", route)
	}
	if strings.ContainsAny(route, "{}*") {
		return fmt.Errorf("route %q contains a pattern character", route)
	}
	return nil
}
