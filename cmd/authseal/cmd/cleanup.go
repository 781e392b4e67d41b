package cmd

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jmcleod/authseal/revocation"
	bboltrevocation "github.com/jmcleod/authseal/revocation/bbolt"
	redisrevocation "github.com/jmcleod/authseal/revocation/redis"
)

var (
	cleanupDataDir   string
	cleanupRedisAddr string
	cleanupOlderThan time.Duration
)

// cleanupCmd prunes revocation entries whose sealed cookies have expired
// on their own and can no longer be replayed.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune expired session revocation entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		var store revocation.Store
		if cleanupRedisAddr != "" {
			client := goredis.NewClient(&goredis.Options{Addr: cleanupRedisAddr})
			defer client.Close()
			store = redisrevocation.New(client, cleanupOlderThan)
		} else {
			bboltStore, err := bboltrevocation.NewStoreFromFile(cleanupDataDir+"/revocation.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open revocation store: %w", err)
			}
			defer bboltStore.Close()
			store = bboltStore
		}

		removed, err := store.Cleanup(cmd.Context(), time.Now().Add(-cleanupOlderThan))
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d revocation entries older than %s\n", removed, cleanupOlderThan)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().StringVar(&cleanupDataDir, "data-dir", "./data", "Directory for persistent data")
	cleanupCmd.Flags().StringVar(&cleanupRedisAddr, "redis", "", "Redis address for shared state (host:port)")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 7*24*time.Hour, "Prune entries revoked before this long ago")
}
