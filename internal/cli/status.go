package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemwalletcom/gem-android-sub002/internal/control"
	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [tx_id]",
	Short: "Show a stored transaction",
	Args:  cobra.ExactArgs(1),
	Run:   runStatus,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending transactions",
	Run:   runPending,
}

var clearPendingCmd = &cobra.Command{
	Use:   "clear-pending",
	Short: "Delete every pending transaction",
	Run:   runClearPending,
}

func init() {
	rootCmd.AddCommand(statusCmd, pendingCmd, clearPendingCmd)
}

func openRepo(ctx context.Context) (storage.TransactionRepository, func()) {
	cfg := loadConfig()
	repo, db, err := control.OpenStorage(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	return repo, func() {
		if db != nil {
			_ = db.Close()
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	repo, closeRepo := openRepo(ctx)
	defer closeRepo()

	tx, err := repo.Get(ctx, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Printf("Transaction %s not found\n", args[0])
		return
	}
	if err != nil {
		slog.Error("Failed to load transaction", "id", args[0], "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\t%s\n", tx.ID)
	_, _ = fmt.Fprintf(w, "HASH\t%s\n", tx.Hash)
	_, _ = fmt.Fprintf(w, "TYPE\t%s\n", tx.Type)
	_, _ = fmt.Fprintf(w, "STATE\t%s\n", tx.State)
	_, _ = fmt.Fprintf(w, "FROM\t%s\n", tx.Owner)
	_, _ = fmt.Fprintf(w, "TO\t%s\n", tx.Recipient)
	_, _ = fmt.Fprintf(w, "VALUE\t%s %s\n", tx.Value, tx.AssetID)
	_, _ = fmt.Fprintf(w, "FEE\t%s %s\n", tx.Fee, tx.FeeAssetID)
	_, _ = fmt.Fprintf(w, "BLOCK\t%s\n", tx.BlockNumber)
	_, _ = fmt.Fprintf(w, "CREATED\t%s\n", tx.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "UPDATED\t%s\n", tx.UpdatedAt.Format(time.RFC3339))
	if tx.Type == domain.TxTypeSwap {
		if meta, err := repo.GetSwapMetadata(ctx, tx.ID); err == nil {
			_, _ = fmt.Fprintf(w, "SWAP\t%s %s -> %s %s via %s\n", meta.FromValue, meta.FromAsset, meta.ToValue, meta.ToAsset, meta.Provider)
		}
	}
	_ = w.Flush()
}

func runPending(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	repo, closeRepo := openRepo(ctx)
	defer closeRepo()

	pending, err := repo.ListPending(ctx)
	if err != nil {
		slog.Error("Failed to list pending transactions", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tAGE\tUPDATED")
	now := time.Now()
	for _, tx := range pending {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.ID, tx.Type, now.Sub(tx.CreatedAt).Truncate(time.Second), tx.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
	fmt.Printf("%d pending\n", len(pending))
}

func runClearPending(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	repo, closeRepo := openRepo(ctx)
	defer closeRepo()

	n, err := repo.ClearPending(ctx)
	if err != nil {
		slog.Error("Failed to clear pending transactions", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d pending transactions\n", n)
}
