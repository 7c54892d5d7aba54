package main

import (
	"fmt"

	"facilityops/internal/models"
	"facilityops/internal/repositories"
	"facilityops/internal/services"
	"facilityops/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminInput models.NewUser

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long:  `Creates the first administrator. Registration through the API only ever creates technicians.`,
	RunE:  runCreateAdmin,
}

func init() {
	flags := createAdminCmd.Flags()
	flags.StringVar(&adminInput.Email, "email", "", "admin email")
	flags.StringVar(&adminInput.Password, "password", "", "admin password")
	flags.StringVar(&adminInput.FirstName, "first-name", "", "first name")
	flags.StringVar(&adminInput.LastName, "last-name", "", "last name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	_ = createAdminCmd.MarkFlagRequired("first-name")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	userSvc := services.NewUserService(repositories.NewUserRepository(pool), services.NewReportService(), cfg.Auth.BcryptCost, logger)

	in := adminInput
	in.Role = models.RoleAdmin
	user, err := userSvc.CreateUser(ctx, in)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	logger.Info("admin created", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	return nil
}
