package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/deletequeue"
	"github.com/brstgt/seaweed-admin/weed/store"
)

func deleteQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-queue",
		Short: "inspect and process the queue of deletes waiting to be retried",
		Long: `A delete is only applied when every replica of the file's volume is online.
Deletes that cannot be applied are queued and retried with a growing backoff
of one minute times 1.5 to the power of the number of tries. Nothing is ever
dropped from the queue.`,
	}
	cmd.AddCommand(
		deleteQueueProcessCommand(),
		deleteQueueCountCommand(),
		deleteQueueShowCommand(),
		deleteQueueDeleteCommand(),
		deleteQueueFlushCommand(),
	)
	return cmd
}

func withDeleteQueue(fn func(env *environment, queue *deletequeue.Queue) error) error {
	env, err := loadEnvironment(false)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env, env.newDeleteQueue())
}

func deleteQueueProcessCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "retry one batch of due deletes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeleteQueue(func(env *environment, queue *deletequeue.Queue) error {
				processor := deletequeue.NewProcessor(queue, env.newStorage(queue))
				result, err := processor.Process(cmd.Context(), limit)
				if result != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%d deleted, %d requeued\n", result.Deleted, result.Requeued)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", deletequeue.DefaultPopLimit, "maximum number of deletes to retry")
	return cmd
}

func deleteQueueCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "print the number of queued deletes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeleteQueue(func(env *environment, queue *deletequeue.Queue) error {
				count, err := queue.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func deleteQueueShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show fid",
		Short: "print the queue entry of a file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeleteQueue(func(env *environment, queue *deletequeue.Queue) error {
				item, err := queue.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printQueueItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
}

func printQueueItem(out io.Writer, item *store.DeleteQueueItem) {
	fmt.Fprintf(out, "fid:         %s\n", item.FileId)
	fmt.Fprintf(out, "collection:  %s\n", item.Collection)
	fmt.Fprintf(out, "replication: %s\n", item.Replication)
	fmt.Fprintf(out, "tries:       %d\n", item.TryCount)
	fmt.Fprintf(out, "enqueued:    %s\n", item.EnqueuedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "retry at:    %s\n", item.RetryAt.Format(time.RFC3339))
	if item.Exception != "" {
		fmt.Fprintf(out, "last error:  %s\n", item.Exception)
	}
}

func deleteQueueDeleteCommand() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delete fid -c collection",
		Short: "delete a file, queueing the delete if a replica is unavailable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeleteQueue(func(env *environment, queue *deletequeue.Queue) error {
				return env.newStorage(queue).Delete(cmd.Context(), args[0], collection)
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection of the file")
	cmd.MarkFlagRequired("collection")
	return cmd
}

func deleteQueueFlushCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "drop every queued delete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("flush drops deletes that were never applied, confirm with --yes")
			}
			return withDeleteQueue(func(env *environment, queue *deletequeue.Queue) error {
				return queue.Flush(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "really drop all queued deletes")
	return cmd
}

// processDeleteQueue runs the processor until ctx is done.
func processDeleteQueue(ctx context.Context, env *environment, interval time.Duration, limit int) error {
	queue := env.newDeleteQueue()
	return deletequeue.NewProcessor(queue, env.newStorage(queue)).Run(ctx, interval, limit)
}
