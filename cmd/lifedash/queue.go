package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Awaneesh03/digital-life-dashboard/internal/outbox"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List queued mutations",
	Long: `List every mutation waiting in the outbox, in replay order.

Entries that keep failing show their retry count; after the retry
ceiling they are discarded with a notice.`,
	RunE: runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	entries, err := outbox.NewQueue(store).Pending(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Outbox empty, nothing waiting for replay")
		return nil
	}

	fmt.Printf("%d queued mutation(s):\n\n", len(entries))
	for _, entry := range entries {
		retries := ""
		if entry.RetryCount > 0 {
			retries = fmt.Sprintf("  (retries: %d)", entry.RetryCount)
		}
		fmt.Printf("  #%-4d %-7s %-9s %s  queued %s%s\n",
			entry.Seq, entry.Op, entry.Collection, entry.Record.ID(),
			entry.EnqueuedAt.Format("2006-01-02 15:04:05"), retries)
	}
	return nil
}
