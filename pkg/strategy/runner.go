package strategy

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"github.com/convox/bundle/pkg/helpers"
	"github.com/convox/bundle/pkg/structs"
	"github.com/convox/exec"
	"github.com/convox/logger"
	"github.com/google/go-containerregistry/pkg/name"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

//go:embed Dockerfile
var Dockerfile []byte

var log = logger.New("ns=strategy")

// Images remembers the bundling images already built. Runners sharing one
// build each distinct image once.
type Images struct {
	lock  sync.Mutex
	built map[string]bool
}

func NewImages() *Images {
	return &Images{built: map[string]bool{}}
}

// Runner executes plans through the exec interface. Subprocess output goes to
// Output and is captured for error reports.
type Runner struct {
	Exec   exec.Interface
	Images *Images
	Output io.Writer
	User   string
}

func NewRunner(e exec.Interface, w io.Writer) *Runner {
	if w == nil {
		w = os.Stderr
	}

	return &Runner{Exec: e, Images: NewImages(), Output: w, User: defaultUser()}
}

// Run dispatches a plan. The bool is false when a local plan exited non-zero.
func (r *Runner) Run(p Plan) (bool, error) {
	switch pp := p.(type) {
	case LocalPlan:
		return r.RunLocal(pp)
	case ContainerPlan:
		if err := r.RunContainer(pp); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errors.Errorf("unknown plan: %T", p)
	}
}

// RunLocal runs the chain on the host. A non-zero exit is reported as false
// with no error so the caller can fall back to a container.
func (r *Runner) RunLocal(p LocalPlan) (bool, error) {
	log := log.At("local").Start()

	if p.Dir == "" {
		return false, log.Error(errors.New("local plan requires a directory"))
	}

	cmd, args := LocalArgs(p)

	var buf bytes.Buffer

	if err := r.Exec.Run(io.MultiWriter(r.output(), &buf), cmd, args...); err != nil {
		log.Logf("state=failed error=%q", err)
		return false, nil
	}

	log.Success()

	return true, nil
}

// LocalArgs is the argv that runs p.Command in p.Dir with p.Env merged into
// the host environment.
func LocalArgs(p LocalPlan) (string, []string) {
	if p.OS == "windows" {
		parts := []string{}

		for _, kv := range helpers.EnvList(p.Env) {
			parts = append(parts, fmt.Sprintf(`set "%s"`, kv))
		}

		parts = append(parts, fmt.Sprintf(`cd /d "%s"`, p.Dir), p.Command)

		return "cmd", []string{"/c", strings.Join(parts, " && ")}
	}

	script := fmt.Sprintf("cd %s && %s", shellescape.Quote(p.Dir), p.Command)

	if len(p.Env) == 0 {
		return "bash", []string{"-c", script}
	}

	args := append(helpers.EnvList(p.Env), "bash", "-c", script)

	return "env", args
}

// RunContainer prepares the image and runs the chain inside it. Failures are
// returned as an ExecutionError carrying the captured output.
func (r *Runner) RunContainer(p ContainerPlan) error {
	log := log.At("container").Start()

	image, err := r.Image(p)
	if err != nil {
		return log.Error(err)
	}

	args := r.RunArgs(image, p)

	log.Logf("cmd=%q", shellquote.Join(append([]string{"docker"}, args...)...))

	var buf bytes.Buffer

	if err := r.Exec.Run(io.MultiWriter(r.output(), &buf), "docker", args...); err != nil {
		return log.Error(&structs.ExecutionError{Command: p.Command, Output: buf.String(), Err: err})
	}

	log.Success()

	return nil
}

// RunArgs is the docker run argv for p using image.
func (r *Runner) RunArgs(image string, p ContainerPlan) []string {
	args := []string{"run", "--rm"}

	if p.Platform != "" {
		args = append(args, "--platform", p.Platform)
	}

	if r.User != "" {
		args = append(args, "-u", r.User)
	}

	for _, v := range p.Volumes {
		args = append(args, "-v", v.String())
	}

	for _, kv := range helpers.EnvList(p.Env) {
		args = append(args, "--env", kv)
	}

	if p.Workdir != "" {
		args = append(args, "-w", p.Workdir)
	}

	return append(args, image, "bash", "-c", p.Command)
}

// Image returns the image to run p in, building the bundling image once per
// distinct set of build arguments.
func (r *Runner) Image(p ContainerPlan) (string, error) {
	if p.Image != "" {
		if _, err := name.ParseReference(p.Image); err != nil {
			return "", structs.ConfigErrorf("docker_image", "invalid docker image %q: %s", p.Image, err)
		}
		return p.Image, nil
	}

	args := BuildArgs(p)
	tag := ImageTag(args, p.Platform)

	if r.Images == nil {
		r.Images = NewImages()
	}

	r.Images.lock.Lock()
	defer r.Images.lock.Unlock()

	if r.Images.built[tag] {
		return tag, nil
	}

	dir, err := os.MkdirTemp("", "bundle-image-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), Dockerfile, 0644); err != nil {
		return "", errors.WithStack(err)
	}

	bargs := []string{"build", "-t", tag}

	for _, kv := range args {
		bargs = append(bargs, "--build-arg", kv)
	}

	if p.Platform != "" {
		bargs = append(bargs, "--platform", p.Platform)
	}

	bargs = append(bargs, dir)

	var buf bytes.Buffer

	if err := r.Exec.Run(io.MultiWriter(r.output(), &buf), "docker", bargs...); err != nil {
		return "", &structs.ExecutionError{Command: "docker build", Output: buf.String(), Err: err}
	}

	r.Images.built[tag] = true

	return tag, nil
}

// BuildArgs are the docker build arguments: IMAGE from the base image,
// ESBUILD_VERSION defaulting to the supported major, then the rest sorted.
func BuildArgs(p ContainerPlan) []string {
	user := map[string]string{}

	for k, v := range p.BuildArgs {
		if k != "IMAGE" && k != "ESBUILD_VERSION" {
			user[k] = v
		}
	}

	version := SupportedMajor
	if v, ok := p.BuildArgs["ESBUILD_VERSION"]; ok && v != "" {
		version = v
	}

	args := []string{
		fmt.Sprintf("IMAGE=%s", p.BaseImage),
		fmt.Sprintf("ESBUILD_VERSION=%s", version),
	}

	return append(args, helpers.EnvList(user)...)
}

// ImageTag names the bundling image after its Dockerfile, build arguments
// and platform.
func ImageTag(args []string, platform string) string {
	sorted := append([]string{}, args...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write(Dockerfile)
	h.Write([]byte(strings.Join(sorted, "\n")))
	h.Write([]byte(platform))

	return fmt.Sprintf("bundle-%x", h.Sum(nil))[0:39]
}

func (r *Runner) output() io.Writer {
	if r.Output == nil {
		return os.Stderr
	}

	return r.Output
}

func defaultUser() string {
	uid, gid := os.Getuid(), os.Getgid()

	if uid < 0 || gid < 0 {
		return "1000:1000"
	}

	return fmt.Sprintf("%d:%d", uid, gid)
}
