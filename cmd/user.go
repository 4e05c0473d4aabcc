package main

import (
	"context"
	"fmt"

	"github.com/jekabolt/delivery-analytics/app"
	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/spf13/cobra"
)

var (
	userEmail     string
	userPassword  string
	userRole      string
	userCompanies []int

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	userAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Create a portal user",
		RunE:  addUser,
	}
)

func init() {
	f := userAddCmd.Flags()
	f.StringVar(&userEmail, "email", "", "login e-mail")
	f.StringVar(&userPassword, "password", "", "initial password")
	f.StringVar(&userRole, "role", string(entity.RoleExternal), "internal or external")
	f.IntSliceVar(&userCompanies, "company", nil, "companies an external user may read")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd)
}

func addUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}
	src, err := app.OpenSources(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer src.Close()
	if src.Repository == nil {
		return fmt.Errorf("users can only be added to a database, fixture users live in the fixture file")
	}

	a, err := auth.New(&cfg.Auth, src.Users)
	if err != nil {
		return err
	}
	id, err := a.AddUser(ctx, userEmail, userPassword, entity.UserRole(userRole), userCompanies)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", id, userEmail)
	return nil
}
