package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl NAV history from the persisted cursor to the end of the catalog",
		Long: `Resumes from the stored cursor (or starts from the first entity) and
walks every remaining entity page by page. Interrupting with Ctrl-C leaves
the cursor on the page in flight; the next crawl picks up there.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if addr := appInstance.Config().Server.Addr; addr != "" {
		serverCtx, cancelServer := context.WithCancel(ctx)
		defer cancelServer()
		go func() {
			serverErr <- appInstance.StatusServer().ListenAndServe(serverCtx, addr)
		}()
	}

	summary, err := appInstance.Engine().Run(ctx)
	select {
	case serr := <-serverErr:
		if serr != nil {
			logger.Warn("status server stopped", zap.Error(serr))
		}
	default:
	}
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("crawl interrupted; progress saved",
			zap.Int("pages_fetched", summary.PagesFetched),
			zap.Int("observations_written", summary.ObservationsWritten),
		)
		return nil
	case errors.Is(err, crawler.ErrTransientAbort):
		return fmt.Errorf("crawl aborted, rerun to resume: %w", err)
	case err != nil:
		return fmt.Errorf("run crawler: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"crawl complete: %d entities, %d pages, %d observations written, %d failed, %d rows skipped\n",
		summary.EntitiesVisited,
		summary.PagesFetched,
		summary.ObservationsWritten,
		summary.WriteFailures,
		summary.RowsSkipped,
	)
	return nil
}
