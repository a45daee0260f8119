package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/structs"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var dependencySections = []string{"peerDependencies", "devDependencies", "dependencies"}

// Dependencies resolves the version of each module from the package.json at
// pkg, falling back to the version installed in node_modules.
func Dependencies(pkg string, modules []string) ([]Dependency, error) {
	data, err := os.ReadFile(pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	deps := make([]Dependency, 0, len(modules))

	for _, m := range modules {
		version := declaredVersion(data, m)

		if version == "" {
			version = installedVersion(filepath.Dir(pkg), m)
		}

		if version == "" {
			return nil, structs.ConfigErrorf("node_modules", "cannot extract version for module '%s', check that it's referenced in your package.json or installed", m)
		}

		deps = append(deps, Dependency{Name: m, Version: version})
	}

	return deps, nil
}

type Dependency struct {
	Name    string
	Version string
}

func declaredVersion(pkg []byte, module string) string {
	for _, section := range dependencySections {
		if v := gjson.GetBytes(pkg, section+"."+gjson.Escape(module)); v.Exists() {
			return v.String()
		}
	}

	return ""
}

func installedVersion(dir, module string) string {
	p := helpers.FindUp(filepath.Join("node_modules", module, "package.json"), dir, "")
	if p == "" {
		return ""
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}

	return gjson.GetBytes(data, "version").String()
}

// Manifest renders {"dependencies":{...}} for modules, keeping their order.
func Manifest(pkg string, modules []string) ([]byte, error) {
	deps, err := Dependencies(pkg, modules)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	buf.WriteString(`{"dependencies":{`)

	for i, d := range deps {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := marshal(d.Name)
		if err != nil {
			return nil, err
		}

		v, err := marshal(d.Version)
		if err != nil {
			return nil, err
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteString(`}}`)

	return buf.Bytes(), nil
}

func marshal(s string) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(s); err != nil {
		return nil, errors.WithStack(err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
