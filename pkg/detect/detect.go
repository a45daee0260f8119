package detect

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/exec"
	"github.com/convox/logger"
	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// Tool is a build tool that can be installed in node_modules or globally.
type Tool struct {
	Name   string
	Module string
	Binary string
}

var (
	Esbuild = Tool{Name: "esbuild", Module: "esbuild", Binary: "esbuild"}
	Tsc     = Tool{Name: "tsc", Module: "typescript", Binary: "tsc"}
)

// Default is the process-wide cache used when callers do not inject one.
var Default = New(&exec.Exec{})

var log = logger.New("ns=detect")

// Cache memoizes tool probes and completed pre-compilations for the life of
// the process. It holds at most one entry per tool.
type Cache struct {
	Exec exec.Interface

	lock     sync.Mutex
	tools    map[string]*structs.ToolInstallation
	compiled map[string]bool
	probes   int
}

func New(e exec.Interface) *Cache {
	return &Cache{
		Exec:     e,
		tools:    map[string]*structs.ToolInstallation{},
		compiled: map[string]bool{},
	}
}

// Detect returns the installation of tool, probing node_modules above dir
// first and the PATH second. The first result is cached, including a miss.
func (c *Cache) Detect(tool Tool, dir string) *structs.ToolInstallation {
	c.lock.Lock()
	defer c.lock.Unlock()

	if ti, ok := c.tools[tool.Name]; ok {
		return ti
	}

	c.probes++

	ti := c.probe(tool, dir)

	c.tools[tool.Name] = ti

	return ti
}

func (c *Cache) probe(tool Tool, dir string) *structs.ToolInstallation {
	log := log.At("probe").Namespace("tool=%s", tool.Name)

	if version, ok := localVersion(tool, dir); ok {
		log.Logf("local=true version=%s", version)
		return &structs.ToolInstallation{IsLocal: true, Version: version}
	}

	data, err := c.Exec.Execute(tool.Binary, "--version")
	if err != nil {
		log.Logf("found=false")
		return nil
	}

	version := parseVersion(string(data))

	if version == "" {
		log.Logf("found=false version=%q", strings.TrimSpace(string(data)))
		return nil
	}

	log.Logf("local=false version=%s", version)

	return &structs.ToolInstallation{IsLocal: false, Version: version}
}

func localVersion(tool Tool, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}

	pkg := helpers.FindUp(filepath.Join("node_modules", tool.Module, "package.json"), dir, "")
	if pkg == "" {
		return "", false
	}

	data, err := os.ReadFile(pkg)
	if err != nil {
		return "", false
	}

	version := parseVersion(gjson.GetBytes(data, "version").String())

	return version, version != ""
}

// parseVersion accepts the plain output of --version, including the
// "Version x.y.z" form printed by tsc.
func parseVersion(out string) string {
	v := strings.TrimSpace(out)
	v = strings.TrimPrefix(v, "Version ")
	v = strings.TrimPrefix(v, "v")

	if !semver.IsValid("v" + v) {
		return ""
	}

	return v
}

// Major returns the major version number as a string, e.g. "0" for 0.14.2.
func Major(version string) string {
	return strings.TrimPrefix(semver.Major("v"+strings.TrimPrefix(version, "v")), "v")
}

func (c *Cache) Clear(tool Tool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.tools, tool.Name)
}

func (c *Cache) ClearAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.tools = map[string]*structs.ToolInstallation{}
}

// Compiled reports whether the project of tsconfig was already compiled.
func (c *Cache) Compiled(tsconfig string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.compiled[tsconfig]
}

func (c *Cache) MarkCompiled(tsconfig string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.compiled[tsconfig] = true
}

func (c *Cache) ClearCompiled() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.compiled = map[string]bool{}
}

// Probes is the number of probes run since the cache was created.
func (c *Cache) Probes() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.probes
}
