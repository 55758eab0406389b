package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/moviematic/internal/data"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(
		c.userChange("promote", "Give a user the admin role", func(u *data.User) {
			u.Role = data.RoleAdmin
		}),
		c.userChange("demote", "Reset a user to the user role", func(u *data.User) {
			u.Role = data.RoleUser
		}),
		c.userChange("deactivate", "Deactivate an account", func(u *data.User) {
			u.IsActive = false
		}),
		c.userChange("activate", "Reactivate an account", func(u *data.User) {
			u.IsActive = true
		}),
	)

	return cmd
}

// userChange 按邮箱查找用户，修改后保存
func (c *cli) userChange(use, short string, change func(*data.User)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.db()
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := updateUser(cmd.Context(), data.NewModels(db).Users, args[0], change)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: role=%s active=%t\n", user.Email, user.Role, user.IsActive)
			return nil
		},
	}
}

func updateUser(ctx context.Context, users data.UserModel, email string, change func(*data.User)) (*data.User, error) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("no user with email %s", email)
		}
		return nil, err
	}

	change(user)

	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
