package structs

import (
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/samber/lo"
)

const bundlingImagePrefix = "public.ecr.aws/sam/build-"

var reNodeRuntime = regexp.MustCompile(`^nodejs(\d+)`)

type Runtime struct {
	Name          string
	BundlingImage string
}

var (
	RuntimeNodejs12 = NewRuntime(lambda.RuntimeNodejs12X)
	RuntimeNodejs14 = NewRuntime(lambda.RuntimeNodejs14X)
	RuntimeNodejs16 = NewRuntime(lambda.RuntimeNodejs16X)
	RuntimeNodejs18 = NewRuntime(lambda.RuntimeNodejs18X)

	DefaultRuntime = RuntimeNodejs14
)

func NewRuntime(name string) Runtime {
	return Runtime{Name: name, BundlingImage: bundlingImagePrefix + name}
}

// RuntimeFromName looks up a Lambda runtime identifier such as nodejs16.x.
func RuntimeFromName(name string) (Runtime, error) {
	if !lo.Contains(lambda.Runtime_Values(), name) {
		return Runtime{}, ConfigErrorf("runtime", "unknown runtime: %s", name)
	}

	r := NewRuntime(name)

	if _, err := r.Target(); err != nil {
		return Runtime{}, err
	}

	return r, nil
}

// Target is the esbuild --target value for the runtime, e.g. node14.
func (r Runtime) Target() (string, error) {
	m := reNodeRuntime.FindStringSubmatch(r.Name)
	if len(m) < 2 {
		return "", ConfigErrorf("runtime", "cannot extract version from runtime: %s", r.Name)
	}

	return fmt.Sprintf("node%s", m[1]), nil
}

type Architecture struct {
	Name           string
	DockerPlatform string
}

var (
	ArchitectureX8664 = Architecture{Name: lambda.ArchitectureX8664, DockerPlatform: "linux/amd64"}
	ArchitectureArm64 = Architecture{Name: lambda.ArchitectureArm64, DockerPlatform: "linux/arm64"}

	DefaultArchitecture = ArchitectureX8664
)

func ArchitectureFromName(name string) (Architecture, error) {
	switch name {
	case ArchitectureX8664.Name, "amd64":
		return ArchitectureX8664, nil
	case ArchitectureArm64.Name, "arm_64":
		return ArchitectureArm64, nil
	}

	return Architecture{}, ConfigErrorf("architecture", "unknown architecture: %s", name)
}
