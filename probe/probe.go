package main

import (
	"fmt"
	"os"
	"text/template"

	"github.com/driveprobe/driveprobe/probe/command"
)

var usageTemplate = `driveprobe: validate removable storage media with real workloads

Usage:

	probe command [arguments]

The commands are:
{{range .}}{{if .Runnable}}
    {{.Name | printf "%-11s"}} {{.Short}}{{end}}{{end}}

Use "probe help [command]" for more information about a command.

`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmdName := os.Args[1]
	args := os.Args[2:]

	if cmdName == "help" {
		help(args)
		return
	}

	for _, cmd := range command.Commands {
		if cmd.Name() == cmdName && cmd.Runnable() {
			cmd.Flag.Usage = func() { cmd.Usage() }
			cmd.Flag.Parse(args)
			os.Exit(cmd.Run(cmd, cmd.Flag.Args()))
		}
	}

	fmt.Fprintf(os.Stderr, "probe: unknown subcommand %q\nRun 'probe help' for usage.\n", cmdName)
	os.Exit(2)
}

func printUsage() {
	tmpl := template.Must(template.New("usage").Parse(usageTemplate))
	if err := tmpl.Execute(os.Stderr, command.Commands); err != nil {
		panic(err)
	}
}

func help(args []string) {
	if len(args) == 0 {
		printUsage()
		return
	}
	for _, cmd := range command.Commands {
		if cmd.Name() == args[0] {
			fmt.Fprintf(os.Stderr, "Example: probe %s\n", cmd.UsageLine)
			fmt.Fprintf(os.Stderr, "%s\n", cmd.Long)
			cmd.Flag.PrintDefaults()
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown help topic %q. Run 'probe help'.\n", args[0])
	os.Exit(2)
}
