package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// devVersion is reported when neither ldflags nor the module version is known.
const devVersion = "dev"

var buildInfo = BuildInfo{Version: devVersion}

var versionShort bool

// SetBuildInfo records the values main received through -ldflags. Empty
// fields are filled from the module and VCS data the Go toolchain embeds.
func SetBuildInfo(info BuildInfo) {
	buildInfo = resolveBuildInfo(info, debug.ReadBuildInfo)
}

func resolveBuildInfo(info BuildInfo, read func() (*debug.BuildInfo, bool)) BuildInfo {
	embedded, ok := read()
	if ok && embedded != nil {
		if info.Version == "" && embedded.Main.Version != "" && embedded.Main.Version != "(devel)" {
			info.Version = embedded.Main.Version
		}
		settings := make(map[string]string, len(embedded.Settings))
		for _, s := range embedded.Settings {
			settings[s.Key] = s.Value
		}
		if info.Commit == "" {
			info.Commit = shortCommit(settings["vcs.revision"])
			if info.Commit != "" && settings["vcs.modified"] == "true" {
				info.Commit += "-dirty"
			}
		}
		if info.Date == "" {
			info.Date = settings["vcs.time"]
		}
	}
	if info.Version == "" {
		info.Version = devVersion
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), buildInfo.Version)
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), formatBuildInfo(buildInfo))
	},
}

func formatBuildInfo(info BuildInfo) string {
	var b strings.Builder
	b.WriteString("synchronoux version " + info.Version + "\n")
	if info.Commit != "" {
		b.WriteString("  commit: " + info.Commit + "\n")
	}
	if info.Date != "" {
		b.WriteString("  built:  " + info.Date + "\n")
	}
	b.WriteString("  go:     " + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + "\n")
	return b.String()
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}
