package strategy

import "fmt"

const (
	InputDir  = "/asset-input"
	OutputDir = "/asset-output"
)

// Plan is either a LocalPlan or a ContainerPlan.
type Plan interface {
	Kind() string
}

// LocalPlan runs a command chain on the host inside Dir.
type LocalPlan struct {
	Dir     string
	Env     map[string]string
	Command string
	OS      string
}

func (LocalPlan) Kind() string { return "local" }

// ContainerPlan runs a command chain inside Image. When Image is empty it is
// built from the bundled Dockerfile with BuildArgs.
type ContainerPlan struct {
	Image     string
	BaseImage string
	BuildArgs map[string]string
	Platform  string
	Volumes   []Volume
	Env       map[string]string
	Workdir   string
	Command   string
}

func (ContainerPlan) Kind() string { return "container" }

type Volume struct {
	Host        string
	Container   string
	Consistency string
}

func (v Volume) String() string {
	return fmt.Sprintf("%s:%s:%s", v.Host, v.Container, v.Consistency)
}
