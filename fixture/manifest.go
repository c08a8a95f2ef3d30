package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type manifest struct {
	Host      string                      `json:"host" yaml:"host"`
	Port      int                         `json:"port" yaml:"port"`
	Resources map[string]manifestResource `json:"resources" yaml:"resources"`
	Dirs      map[string]string           `json:"dirs" yaml:"dirs"`
}

type manifestResource struct {
	Body     *string `json:"body,omitempty" yaml:"body,omitempty"`
	Resource `yaml:",inline"`
}

// LoadManifest reads a server Config from a YAML or JSON file, picked by
// extension. Relative file and directory paths are resolved against the
// manifest's own directory.
//
//	port: 3000
//	resources:
//	  /index.html:
//	    file: index.html
//	  /a:
//	    body: hello
//	    contentType: text/plain
func LoadManifest(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&m)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&m)
	default:
		return Config{}, fmt.Errorf("unsupported manifest format %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg := Config{
		Host:      m.Host,
		Port:      m.Port,
		Resources: make(map[string]Resource, len(m.Resources)),
		Dirs:      make(map[string]string, len(m.Dirs)),
	}
	for route, mr := range m.Resources {
		res := mr.Resource
		if mr.Body != nil {
			res.Body = []byte(*mr.Body)
		}
		if res.File != "" {
			res.File = resolve(base, res.File)
		}
		cfg.Resources[route] = res
	}
	for prefix, dir := range m.Dirs {
		cfg.Dirs[prefix] = resolve(base, dir)
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
