package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hideadmin/internal/hideadmin"
)

type optionsView struct {
	FeatureEnabled bool   `json:"feature_enabled"`
	LoginSlug      string `json:"login_slug"`
	RedirectMode   string `json:"admin_redirect_mode"`
	RedirectURL    string `json:"admin_redirect_url"`
	LoginURL       string `json:"login_url"`
}

func newOptionsCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "options",
		Aliases: []string{"opt"},
		Short:   "查看或修改隐藏登录选项",
	}
	cmd.AddCommand(
		newOptionsShowCmd(state),
		newOptionsSetCmd(state),
		newOptionsResetCmd(state),
	)
	return cmd
}

func newOptionsShowCmd(state *rootState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "显示当前有效选项与登录地址",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			o := c.options.Get(cmd.Context())
			return printOptions(cmd.OutOrStdout(), c.view(cmd, o), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func newOptionsSetCmd(state *rootState) *cobra.Command {
	var (
		enabled     bool
		slug        string
		mode        string
		redirectURL string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "修改选项（只覆盖指定的字段）",
		Example: `  hideadmin-ctl options set --slug masuk-rahasia
  hideadmin-ctl options set --enabled=false
  hideadmin-ctl options set --mode custom --redirect-url https://example.com/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("enabled") && !flags.Changed("slug") && !flags.Changed("mode") && !flags.Changed("redirect-url") {
				return errors.New("至少指定一个要修改的选项（--enabled/--slug/--mode/--redirect-url）")
			}

			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			raw := c.options.Get(ctx).Raw()
			if flags.Changed("enabled") {
				raw["feature_enabled"] = enabled
			}
			if flags.Changed("slug") {
				raw["login_slug"] = slug
			}
			if flags.Changed("mode") {
				raw["admin_redirect_mode"] = mode
			}
			if flags.Changed("redirect-url") {
				raw["admin_redirect_url"] = redirectURL
			}

			o, err := c.options.Save(ctx, raw)
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), c.view(cmd, o), asJSON)
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "是否启用隐藏登录")
	cmd.Flags().StringVar(&slug, "slug", "", "新的登录 slug（保留名会被替换为默认值）")
	cmd.Flags().StringVar(&mode, "mode", "", "wp-admin 跳转模式：404 或 custom")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "custom 模式的跳转地址（http/https 绝对地址）")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func newOptionsResetCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "把选项恢复为默认值（用于找回登录入口）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := state.open()
			if err != nil {
				return err
			}
			defer c.Close()

			o, err := c.options.Reset(cmd.Context())
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), c.view(cmd, o), false)
		},
	}
}

func (c *conn) view(cmd *cobra.Command, o hideadmin.Options) optionsView {
	loginURL := hideadmin.DefaultLoginURL(c.cfg.Server.PublicBaseURL)
	if o.FeatureEnabled {
		loginURL = c.gate.EffectiveLoginURL(cmd.Context(), c.cfg.Server.PublicBaseURL)
	}
	return optionsView{
		FeatureEnabled: o.FeatureEnabled,
		LoginSlug:      o.LoginSlug,
		RedirectMode:   string(o.RedirectMode),
		RedirectURL:    o.RedirectURL,
		LoginURL:       loginURL,
	}
}

func printOptions(w io.Writer, v optionsView, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintf(w, "feature_enabled:     %t\nlogin_slug:          %s\nadmin_redirect_mode: %s\nadmin_redirect_url:  %s\nlogin_url:           %s\n",
		v.FeatureEnabled, v.LoginSlug, v.RedirectMode, v.RedirectURL, v.LoginURL)
	return err
}
