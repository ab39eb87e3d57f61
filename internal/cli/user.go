package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hideadmin/internal/auth"
	"hideadmin/internal/store"
)

func newUserCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "管理后台账号",
	}
	cmd.AddCommand(
		newUserCreateCmd(state),
		newUserPasswdCmd(state),
		newUserStatusCmd(state, "enable", 1),
		newUserStatusCmd(state, "disable", 0),
	)
	return cmd
}

func newUserCreateCmd(state *rootState) *cobra.Command {
	var (
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "创建账号（未指定 --password 时从标准输入读取一行）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.TrimSpace(role)
			if role != store.UserRoleRoot && role != store.UserRoleUser {
				return fmt.Errorf("role 仅支持 %s/%s", store.UserRoleRoot, store.UserRoleUser)
			}
			pw, err := resolvePassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}

			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			id, err := c.store.CreateUser(cmd.Context(), args[0], hash, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "已创建账号 %s（id=%d, role=%s）\n", strings.TrimSpace(args[0]), id, role)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", store.UserRoleRoot, "账号角色：root 或 user")
	cmd.Flags().StringVar(&password, "password", "", "账号密码（会留在 shell 历史中，推荐改用标准输入）")
	return cmd
}

func newUserPasswdCmd(state *rootState) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "重置账号密码（已登录的会话随之失效）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}

			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.store.UpdateUserPassword(cmd.Context(), u.ID, hash); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "已更新 %s 的密码\n", u.Username)
			return err
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "新密码（会留在 shell 历史中，推荐改用标准输入）")
	return cmd
}

func newUserStatusCmd(state *rootState, verb string, status int) *cobra.Command {
	short := "启用账号"
	if status == 0 {
		short = "禁用账号（已登录的会话随之失效）"
	}
	return &cobra.Command{
		Use:   verb + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.store.SetUserStatus(cmd.Context(), u.ID, status); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: status=%d\n", u.Username, status)
			return err
		},
	}
}

// resolvePassword 优先使用 flag，否则读取标准输入的第一行。
func resolvePassword(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("密码不能为空（使用 --password 或从标准输入传入）")
	}
	return pw, nil
}
