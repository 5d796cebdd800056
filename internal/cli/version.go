package cli

import (
	"fmt"
	"runtime"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/output"
)

// VersionCmd prints build information
type VersionCmd struct{}

// VersionOutput represents the NDJSON output for the version command
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	GoInstall     string `json:"go_install"`
}

const goInstallCmd = "go install github.com/vburojevic/dunehmr/cmd/dunehmr@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(VersionOutput{
			Type:          "version",
			SchemaVersion: domain.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     runtime.Version(),
			GoInstall:     goInstallCmd,
		})
	}

	fmt.Fprintf(globals.Stdout, "dunehmr %s (%s, %s)\n", Version, Commit, runtime.Version())
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade via Go:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
