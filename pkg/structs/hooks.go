package structs

import "strings"

// CommandHooks inject shell commands around bundling. Each hook receives the
// input and output directories as they are seen by the commands.
type CommandHooks interface {
	BeforeBundling(inputDir, outputDir string) []string
	BeforeInstall(inputDir, outputDir string) []string
	AfterBundling(inputDir, outputDir string) []string
}

// ShellHooks are static hook commands where {inputDir} and {outputDir} are
// replaced with the concrete directories.
type ShellHooks struct {
	Before  []string
	Install []string
	After   []string
}

func (h ShellHooks) BeforeBundling(inputDir, outputDir string) []string {
	return expandHooks(h.Before, inputDir, outputDir)
}

func (h ShellHooks) BeforeInstall(inputDir, outputDir string) []string {
	return expandHooks(h.Install, inputDir, outputDir)
}

func (h ShellHooks) AfterBundling(inputDir, outputDir string) []string {
	return expandHooks(h.After, inputDir, outputDir)
}

func expandHooks(cmds []string, inputDir, outputDir string) []string {
	r := strings.NewReplacer("{inputDir}", inputDir, "{outputDir}", outputDir)

	out := make([]string, 0, len(cmds))

	for _, c := range cmds {
		out = append(out, r.Replace(c))
	}

	return out
}
