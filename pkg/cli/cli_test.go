package cli_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/convox/bundle/pkg/cli"
	"github.com/convox/bundle/pkg/detect"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/exec"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"
)

var reOutfile = regexp.MustCompile(`--outfile="([^"]+)"`)

type result struct {
	Code   int
	Stdout string
	Stderr string
}

func (r *result) StdoutLines() int {
	return len(strings.Split(strings.TrimSuffix(r.Stdout, "\n"), "\n"))
}

func (r *result) StdoutLine(line int) string {
	return strings.Split(r.Stdout, "\n")[line]
}

func testEngine(t *testing.T, fn func(*cli.Engine, *exec.MockInterface)) {
	e := &exec.MockInterface{}

	c := cli.New("bundle", "test")
	c.Exec = e
	c.Cache = detect.New(e)

	fn(c, e)
}

func testExecute(e *cli.Engine, cmd string, stdin io.Reader) (*result, error) {
	if stdin == nil {
		stdin = &bytes.Buffer{}
	}

	stdout := bytes.Buffer{}
	stderr := bytes.Buffer{}

	e.Reader.Reader = stdin

	e.Writer.Color = false
	e.Writer.Stdout = &stdout
	e.Writer.Stderr = &stderr

	cp, err := shellquote.Split(cmd)
	if err != nil {
		return nil, err
	}

	code := e.Execute(cp)

	res := &result{
		Code:   code,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	return res, nil
}

// fxProject is a project with a local esbuild and a bundle.yml declaring a
// single api function.
func fxProject(t *testing.T, manifest string) string {
	t.Helper()

	root := t.TempDir()

	files := map[string]string{
		"bundle.yml":                        manifest,
		"package.json":                      `{"name":"project"}`,
		"package-lock.json":                 `{}`,
		"lib/handler.ts":                    `export const handler = async () => 1;`,
		"node_modules/esbuild/package.json": `{"name":"esbuild","version":"0.14.2"}`,
	}

	for name, data := range files {
		require.NoError(t, helpers.WriteFile(filepath.Join(root, name), []byte(data), 0644))
	}

	return root
}

const fxManifest = "functions:\n  api:\n    entry: lib/handler.ts\n"

func writeLocalOutput(t *testing.T, script string) {
	m := reOutfile.FindStringSubmatch(script)
	require.Len(t, m, 2)
	require.NoError(t, os.WriteFile(m[1], []byte("exports.handler = 1"), 0644))
}

func dockerUser() string {
	uid, gid := os.Getuid(), os.Getgid()

	if uid < 0 || gid < 0 {
		return "1000:1000"
	}

	return fmt.Sprintf("%d:%d", uid, gid)
}
