package docgen

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RenderCLIMarkdown writes a CLI reference for the command tree under
// root: global flags, then one section per visible command with its
// synopsis, example, local flags and subcommands.
func RenderCLIMarkdown(w io.Writer, root *cobra.Command) error {
	ew := &errWriter{w: w}
	ew.printf("# CLI Reference\n\n")
	ew.printf(generatedNote)
	if flags := visibleFlags(root.PersistentFlags()); len(flags) > 0 {
		ew.printf("## Global Flags\n\n")
		writeFlagTable(ew, flags)
	}
	walkCommands(ew, root)
	return ew.err
}

// WriteCLIMarkdown renders the CLI reference to path atomically.
func WriteCLIMarkdown(path string, root *cobra.Command) error {
	return WriteFileAtomic(path, func(w io.Writer) error { return RenderCLIMarkdown(w, root) })
}

func walkCommands(ew *errWriter, cmd *cobra.Command) {
	renderCommand(ew, cmd)
	for _, child := range cmd.Commands() {
		if !child.Hidden {
			walkCommands(ew, child)
		}
	}
}

func renderCommand(ew *errWriter, cmd *cobra.Command) {
	ew.printf("## %s\n\n", cmd.CommandPath())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	if desc != "" {
		ew.printf("%s\n\n", strings.TrimSpace(desc))
	}
	ew.printf("```\n%s\n```\n\n", cmd.UseLine())
	if cmd.Example != "" {
		ew.printf("**Example:**\n\n```\n%s\n```\n\n", strings.TrimSpace(cmd.Example))
	}
	if flags := visibleFlags(cmd.LocalNonPersistentFlags()); len(flags) > 0 {
		writeFlagTable(ew, flags)
	}

	var children []*cobra.Command
	for _, c := range cmd.Commands() {
		if !c.Hidden {
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		return
	}
	ew.printf("| Subcommand | Description |\n")
	ew.printf("|------------|-------------|\n")
	for _, c := range children {
		anchor := strings.ToLower(strings.ReplaceAll(c.CommandPath(), " ", "-"))
		ew.printf("| [%s](#%s) | %s |\n", c.CommandPath(), anchor, c.Short)
	}
	ew.printf("\n")
}

// flagInfo holds rendered flag metadata.
type flagInfo struct {
	Name    string
	Type    string
	Default string
	Desc    string
}

func visibleFlags(fs *pflag.FlagSet) []flagInfo {
	var flags []flagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			flags = append(flags, newFlagInfo(f))
		}
	})
	return flags
}

func newFlagInfo(f *pflag.Flag) flagInfo {
	name := "`--" + f.Name + "`"
	if f.Shorthand != "" {
		name = "`-" + f.Shorthand + "`, " + name
	}
	def := ""
	if !isZeroDefault(f.DefValue, f.Value.Type()) {
		def = "`" + f.DefValue + "`"
	}
	return flagInfo{
		Name:    name,
		Type:    f.Value.Type(),
		Default: def,
		Desc:    strings.ReplaceAll(f.Usage, "|", "\\|"),
	}
}

// isZeroDefault reports whether val is the zero value for a flag type.
func isZeroDefault(val, typ string) bool {
	switch typ {
	case "bool":
		return val == "false"
	case "int", "int32", "int64", "uint", "uint32", "uint64", "float32", "float64":
		return val == "0"
	case "duration":
		return val == "0s"
	case "stringSlice", "stringArray":
		return val == "[]"
	default:
		return val == ""
	}
}

func writeFlagTable(ew *errWriter, flags []flagInfo) {
	ew.printf("| Flag | Type | Default | Description |\n")
	ew.printf("|------|------|---------|-------------|\n")
	for _, f := range flags {
		ew.printf("| %s | %s | %s | %s |\n", f.Name, f.Type, f.Default, f.Desc)
	}
	ew.printf("\n")
}
