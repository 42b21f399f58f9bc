// Command motifs runs the motif jobs from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/leaselock"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/logger/console"
	pgstore "github.com/OFFIS-RIT/motifs/pkg/store/pgx"
)

var (
	databaseURL string
	parallel    int
	debug       bool
)

var rootCmd = &cobra.Command{
	Use:           "motifs",
	Short:         "Build cyberbullying session graphs and mine their motifs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug: debug,
		}))
	},
}

func init() {
	util.LoadEnv()

	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", util.GetEnv("DATABASE_URL"), "PostgreSQL connection string")
	rootCmd.PersistentFlags().IntVarP(&parallel, "parallel", "p", util.GetEnvInt("PARALLEL_SESSIONS", 8), "Sessions processed at once")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", util.GetEnvBool("DEBUG", false), "Enable debug logging")
}

// openPipeline connects to the database and returns a pipeline on it. The
// caller closes the pool.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, *pgxpool.Pool, error) {
	pool, err := pgstore.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	p := pipeline.New(
		pgstore.NewGraphDBStorageWithConnection(pool),
		pipeline.WithParallelism(parallel),
		pipeline.WithRetries(util.GetEnvInt("MAX_RETRIES", 3), time.Second),
		pipeline.WithLocker(leaselock.New(pool)),
	)
	return p, pool, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "err", err)
		stop()
		os.Exit(1)
	}
}
