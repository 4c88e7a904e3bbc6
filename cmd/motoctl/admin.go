package main

import (
	"fmt"
	"time"

	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/utils"

	"github.com/spf13/cobra"
)

func adminTokenCmd(open connector) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Выпустить долгоживущий токен администратора",
		Long: `Выпускает JWT с ролью admin для существующего администратора.

Примеры:
  motoctl admin-token --email admin@mototaxi.co
  motoctl admin-token --email admin@mototaxi.co --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, conn, log, err := open(ctx)
			if err != nil {
				return err
			}

			jwt := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
			admin := services.NewAdminService(conn, nil, nil, log)

			user, err := admin.FindUser(ctx, email)
			if err != nil {
				return fmt.Errorf("администратор %s: %w", email, err)
			}
			if user.Role != models.RoleAdmin {
				return fmt.Errorf("пользователь %s не администратор (роль %s)", email, user.Role)
			}

			token, claims, err := jwt.GenerateAdminJWT(user.ID, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\nexpires_at: %s\n", token, claims.ExpiresAt.Time.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email администратора")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "срок действия токена")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func createAdminCmd(open connector) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Создать учетную запись администратора",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, conn, log, err := open(ctx)
			if err != nil {
				return err
			}

			users := services.NewUserService(conn, utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL), nil, log)
			user, err := users.CreateAdmin(ctx, services.RegisterInput{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}

			log.Info(logger.Entry{Action: "admin_created", UserID: user.ID, Fields: logger.Fields{"email": user.Email}})
			fmt.Fprintf(cmd.OutOrStdout(), "admin id=%d email=%s\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrador", "имя")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "пароль (не короче 8 символов)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if len(password) < 8 {
			return fmt.Errorf("пароль должен быть не короче 8 символов")
		}
		return nil
	}

	return cmd
}

