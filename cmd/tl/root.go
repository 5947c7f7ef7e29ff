package tl

import (
	"github.com/ValentinKolb/dFeed/cmd/util"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// TimelineCommands represents the timeline command group
	TimelineCommands = &cobra.Command{
		Use:                "tl",
		Short:              "Perform timeline operations",
		PersistentPreRunE:  setupTimelineClient,
		PersistentPostRunE: closeTimelineClient,
	}

	closeTransport func() error
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the timeline command
	util.SetupRPCClientFlags(TimelineCommands)

	TimelineCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	TimelineCommands.AddCommand(pushCmd)
	TimelineCommands.AddCommand(fanoutCmd)
	TimelineCommands.AddCommand(removeCmd)
	TimelineCommands.AddCommand(trimCmd)
	TimelineCommands.AddCommand(queryCmd)
	TimelineCommands.AddCommand(lenCmd)
	TimelineCommands.AddCommand(infoCmd)
	TimelineCommands.AddCommand(perfTestCmd)
}

// setupTimelineClient initializes the RPC store client
func setupTimelineClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	st, t, err := util.NewClientStore()
	if err != nil {
		return err
	}
	rpcStore, closeTransport = st, t.Close
	return nil
}

func closeTimelineClient(_ *cobra.Command, _ []string) error {
	if closeTransport == nil {
		return nil
	}
	return closeTransport()
}
