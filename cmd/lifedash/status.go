package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Awaneesh03/digital-life-dashboard/internal/collections"
	"github.com/Awaneesh03/digital-life-dashboard/internal/outbox"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and outbox status",
	Long: `Display the current state of the local store.

Shows:
  - Store file location and size
  - Record counts per collection
  - Queued mutations waiting for replay`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := storePath()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Println("\nLocal store not initialized")
		fmt.Println("   Run 'lifedash daemon' or 'lifedash sync' to create it")
		fmt.Println()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check store: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	size := info.Size()
	sizeStr := fmt.Sprintf("%d bytes", size)
	if size > 1024*1024 {
		sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	} else if size > 1024 {
		sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
	}

	fmt.Printf("\nLocal Store Status\n\n")
	fmt.Printf("Location: %s\n", path)
	fmt.Printf("Size: %s\n", sizeStr)
	fmt.Printf("Modified: %s\n\n", info.ModTime().Format("2006-01-02 15:04:05"))

	for _, collection := range collections.Syncable() {
		n, err := store.Count(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", collection, err)
		}
		fmt.Printf("%-10s %d\n", collection+":", n)
	}
	drafts, err := store.Count(ctx, collections.Drafts)
	if err != nil {
		return fmt.Errorf("failed to count drafts: %w", err)
	}
	fmt.Printf("%-10s %d\n", "drafts:", drafts)

	queued, err := outbox.NewQueue(store).Size(ctx)
	if err != nil {
		return fmt.Errorf("failed to size outbox: %w", err)
	}
	fmt.Printf("\nQueued mutations: %d\n\n", queued)
	return nil
}
