package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/spf13/cobra"
)

// SeedUser is one entry of a users seed file.
type SeedUser struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

type seedResult struct {
	created []string
	skipped []string
	failed  map[string]error
}

func loadSeedFile(path string) ([]SeedUser, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var list []SeedUser
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("seed file %s has no users", path)
	}
	return list, nil
}

// seedUsers registers each user as verified. Existing emails are skipped so
// the command can be re-run.
func seedUsers(ctx context.Context, svc *users.Service, list []SeedUser) seedResult {
	res := seedResult{failed: map[string]error{}}
	for _, u := range list {
		_, err := svc.Register(ctx, users.RegisterInput{
			Email:      u.Email,
			Password:   u.Password,
			Name:       u.Name,
			Department: u.Department,
			Verified:   true,
		})
		switch {
		case err == nil:
			res.created = append(res.created, u.Email)
		case errors.Is(err, document.ErrConflict):
			res.skipped = append(res.skipped, u.Email)
		default:
			res.failed[u.Email] = err
		}
	}
	return res
}

func (r seedResult) report(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	for _, e := range r.created {
		fmt.Fprintf(out, "created %s\n", e)
	}
	for _, e := range r.skipped {
		fmt.Fprintf(out, "skipped %s (already exists)\n", e)
	}
	for e, err := range r.failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", e, err)
	}
	if len(r.failed) > 0 {
		return fmt.Errorf("%d of %d users failed", len(r.failed), len(r.created)+len(r.skipped)+len(r.failed))
	}
	return nil
}
