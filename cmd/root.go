package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dFeed/cmd/serve"
	"github.com/ValentinKolb/dFeed/cmd/tl"
	"github.com/ValentinKolb/dFeed/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dfeed",
		Short: "bounded per-user timeline store",
		Long: fmt.Sprintf(`dFeed (v%s)

A store for per-user home timelines written in Go. Every timeline keeps the
most recent status ids up to a fixed bound and is read with cursor based
pagination. Shards can be kept in memory, in a bolt file or replicated with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dFeed",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dFeed v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(tl.TimelineCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
