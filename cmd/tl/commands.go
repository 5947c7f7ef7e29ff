package tl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/dFeed/lib/fanout"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/spf13/cobra"
)

func parseID(arg string) (timeline.StatusID, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("status id must be an unsigned number: %w", err)
	}
	return id, nil
}

var (
	pushCmd = &cobra.Command{
		Use:   "push [user] [id]",
		Short: "Inserts a status id into the timeline of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := rpcStore.Push(args[0], id); err != nil {
				return err
			}
			fmt.Println("push successfully")
			return nil
		},
	}
	fanoutCmd = &cobra.Command{
		Use:   "fanout [id] [user...]",
		Short: "Inserts (or removes) a status id for many users using the fan-out dispatcher",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			users := args[1:]

			remove, _ := cmd.Flags().GetBool("remove")
			batch, _ := cmd.Flags().GetInt("batch")
			batch = max(batch, 1)

			op := fanout.OpPush
			if remove {
				op = fanout.OpRemove
			}

			d := fanout.NewDispatcher(rpcStore)
			defer d.Close()

			for start := 0; start < len(users); start += batch {
				end := min(start+batch, len(users))
				if err := d.Enqueue(fanout.Job{Op: op, ID: id, Users: users[start:end]}); err != nil {
					return err
				}
			}

			timeout, _ := cmd.Flags().GetDuration("flush-timeout")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := d.Flush(ctx); err != nil {
				return fmt.Errorf("fan-out did not finish: %w", err)
			}
			fmt.Printf("fan-out %s of %d to %d timelines done\n", op, id, len(users))
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [user] [id]",
		Short: "Removes a status id from the timeline of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := rpcStore.Remove(args[0], id); err != nil {
				return err
			}
			fmt.Println("remove successfully")
			return nil
		},
	}
	trimCmd = &cobra.Command{
		Use:   "trim [user]",
		Short: "Evicts the oldest ids of a timeline until it fits the configured maximum size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Trim(args[0]); err != nil {
				return err
			}
			fmt.Println("trim successfully")
			return nil
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [user]",
		Short: "Reads a page of a timeline, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params timeline.QueryParams
			flags := cmd.Flags()

			if flags.Changed("since-id") {
				id, _ := flags.GetUint64("since-id")
				params = params.Since(id)
			}
			if flags.Changed("max-id") {
				id, _ := flags.GetUint64("max-id")
				params = params.Max(id)
			}
			params.Limit, _ = flags.GetInt("limit")
			params.Count, _ = flags.GetInt("count")
			params.Offset, _ = flags.GetInt("offset")

			ids, err := rpcStore.Query(args[0], params)
			if err != nil {
				return err
			}
			fmt.Printf("user=%s, count=%d, ids=%v\n", args[0], len(ids), ids)
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len [user]",
		Short: "Prints the number of ids in a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcStore.Len(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("user=%s, len=%d\n", args[0], n)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	fanoutCmd.Flags().Bool("remove", false, "Remove the id from the timelines instead of inserting it")
	fanoutCmd.Flags().Int("batch", 500, "Number of users per fan-out job")
	fanoutCmd.Flags().Duration("flush-timeout", 30*time.Second, "How long to wait for the fan-out to be applied")

	queryCmd.Flags().Uint64("since-id", 0, "Only return ids newer than this id (exclusive)")
	queryCmd.Flags().Uint64("max-id", 0, "Only return ids at or older than this id (inclusive)")
	queryCmd.Flags().Int("limit", timeline.DefaultLimit, fmt.Sprintf("Page size (capped at %d)", timeline.MaxLimit))
	queryCmd.Flags().Int("count", 0, "Legacy page size, overrides limit, offset and the cursors")
	queryCmd.Flags().Int("offset", 0, "Number of ids to skip from the front of the page")
}
