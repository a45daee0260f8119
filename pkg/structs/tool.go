package structs

// ToolInstallation is the result of probing for a build tool. A nil
// installation means the tool was not found.
type ToolInstallation struct {
	IsLocal bool
	Version string
}

func (t *ToolInstallation) Found() bool {
	return t != nil && t.Version != ""
}
