package metafile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/errors"
)

// Metafile is the build metadata esbuild writes with --metafile.
type Metafile struct {
	Inputs  map[string]Input  `json:"inputs"`
	Outputs map[string]Output `json:"outputs"`

	raw []byte
}

type Input struct {
	Bytes   int      `json:"bytes"`
	Imports []Import `json:"imports"`
}

type Import struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

type Output struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]Contribution `json:"inputs"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

type Contribution struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// File is one input's share of the bundle.
type File struct {
	Path          string
	BytesInOutput int
	Percentage    float64
}

type Analysis struct {
	TotalBytes int
	Files      []File
	Externals  []string
}

func Load(path string) (*Metafile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Metafile, error) {
	var m Metafile

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "invalid metafile")
	}

	m.raw = data

	return &m, nil
}

// Analyze sums what each input contributes to the outputs, largest first.
func (m *Metafile) Analyze() *Analysis {
	a := &Analysis{}

	sizes := map[string]int{}

	for _, o := range m.Outputs {
		a.TotalBytes += o.Bytes

		for path, c := range o.Inputs {
			sizes[path] += c.BytesInOutput
		}
	}

	for path, n := range sizes {
		f := File{Path: path, BytesInOutput: n}

		if a.TotalBytes > 0 {
			f.Percentage = float64(n) * 100 / float64(a.TotalBytes)
		}

		a.Files = append(a.Files, f)
	}

	sort.Slice(a.Files, func(i, j int) bool {
		if a.Files[i].BytesInOutput == a.Files[j].BytesInOutput {
			return a.Files[i].Path < a.Files[j].Path
		}
		return a.Files[i].BytesInOutput > a.Files[j].BytesInOutput
	})

	externals := map[string]bool{}

	for _, in := range m.Inputs {
		for _, imp := range in.Imports {
			if imp.External {
				externals[imp.Path] = true
			}
		}
	}

	for e := range externals {
		a.Externals = append(a.Externals, e)
	}

	sort.Strings(a.Externals)

	return a
}

// Report prints the top inputs of the analysis.
func (a *Analysis) Report(w io.Writer, top int) {
	fmt.Fprintf(w, "Bundle size: %s\n", humanize.Bytes(uint64(a.TotalBytes)))

	files := a.Files
	if top > 0 && len(files) > top {
		files = files[:top]
	}

	for _, f := range files {
		fmt.Fprintf(w, "  %-60s %10s %5.1f%%\n", f.Path, humanize.Bytes(uint64(f.BytesInOutput)), f.Percentage)
	}

	if len(a.Externals) > 0 {
		fmt.Fprintf(w, "External: %s\n", strings.Join(a.Externals, ", "))
	}
}

// Text is esbuild's own analysis of the metafile.
func (m *Metafile) Text(verbose bool) string {
	return api.AnalyzeMetafile(string(m.raw), api.AnalyzeMetafileOptions{Verbose: verbose})
}
