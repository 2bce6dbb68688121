// Command seed provisions verified docflow users directly in MongoDB.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docflow/docflow/server/internal/config"
	"github.com/docflow/docflow/server/internal/database"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

// openFunc returns the user service to seed into and a cleanup func.
type openFunc func(ctx context.Context) (*users.Service, func(), error)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := newRootCmd(openMongo).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "seed",
		Short:         "Seed docflow users",
		SilenceUsage: true,
	}

	var in SeedUser
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Create one verified user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return seedUsers(cmd.Context(), svc, []SeedUser{in}).report(cmd)
		},
	}
	userCmd.Flags().StringVar(&in.Email, "email", "", "user email (required)")
	userCmd.Flags().StringVar(&in.Password, "password", "", "user password (required)")
	userCmd.Flags().StringVar(&in.Name, "name", "", "display name")
	userCmd.Flags().StringVar(&in.Department, "department", "", "department")
	_ = userCmd.MarkFlagRequired("email")
	_ = userCmd.MarkFlagRequired("password")

	var file string
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Create verified users from a JSON file",
		Long:  `Reads a JSON array of {email, password, name, department} objects. Existing emails are skipped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadSeedFile(file)
			if err != nil {
				return err
			}
			svc, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return seedUsers(cmd.Context(), svc, list).report(cmd)
		},
	}
	usersCmd.Flags().StringVarP(&file, "file", "f", "", "path to users JSON file (required)")
	_ = usersCmd.MarkFlagRequired("file")

	root.AddCommand(userCmd, usersCmd)
	return root
}

func openMongo(ctx context.Context) (*users.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.MongoDB.URI == "" {
		return nil, nil, fmt.Errorf("MONGODB_URI is required for seeding")
	}
	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.Retries, time.Second, func(ctx context.Context) (*mongo.Client, error) {
		return database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	})
	if err != nil {
		return nil, nil, err
	}
	repo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection("users"))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ensure user indexes: %w", err)
	}
	return users.NewService(repo), func() { _ = client.Disconnect(context.Background()) }, nil
}
