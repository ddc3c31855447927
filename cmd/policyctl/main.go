package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "policyctl",
	Short: "Inspect roles, permissions and status transitions",
	Long:  "policyctl evaluates the same access rules the API enforces, without a running server.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		return nil
	},
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("POLICYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("login-path", access.DefaultLoginPath, "redirect target for unauthenticated callers")
	rootCmd.PersistentFlags().String("fallback-path", access.DefaultFallbackPath, "redirect target for denied callers")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("login-path", rootCmd.PersistentFlags().Lookup("login-path"))
	_ = viper.BindPFlag("fallback-path", rootCmd.PersistentFlags().Lookup("fallback-path"))
}

func registerCommands() {
	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(permissionsCmd())
	rootCmd.AddCommand(transitionsCmd())
	rootCmd.AddCommand(decideCmd())
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List known roles and their families",
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := rbac.Roles()
			if viper.GetBool("json") {
				out := make([]map[string]string, 0, len(roles))
				for _, r := range roles {
					out = append(out, map[string]string{"role": string(r), "family": string(rbac.FamilyOf(r))})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Role", "Family"})
			for _, r := range roles {
				tw.AppendRow(table.Row{r, rbac.FamilyOf(r)})
			}
			tw.Render()
			return nil
		},
	}
}

func permissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions [role...]",
		Short: "Show the capabilities granted to roles",
		Long:  "Show the capabilities granted to each role. Aliases are accepted; with no arguments every known role is listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := permissionRows(args)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Input", "Role", "Family", "Capabilities"})
			for _, r := range rows {
				caps := make([]string, len(r.Capabilities))
				for i, c := range r.Capabilities {
					caps[i] = string(c)
				}
				tw.AppendRow(table.Row{r.Input, r.Role, r.Family, strings.Join(caps, "\n")})
			}
			tw.SetStyle(table.StyleLight)
			tw.Style().Options.SeparateRows = true
			tw.Render()
			return nil
		},
	}
}

type permissionRow struct {
	Input        string            `json:"input"`
	Role         string            `json:"role,omitempty"`
	Family       string            `json:"family,omitempty"`
	Known        bool              `json:"known"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// permissionRows resolves each input; unknown inputs get the restricted set.
func permissionRows(inputs []string) ([]permissionRow, error) {
	if len(inputs) == 0 {
		for _, r := range rbac.Roles() {
			inputs = append(inputs, string(r))
		}
	}
	rows := make([]permissionRow, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, fmt.Errorf("empty role")
		}
		perms, known := rbac.ResolveString(in)
		row := permissionRow{Input: in, Known: known, Capabilities: perms.Capabilities()}
		if role, ok := rbac.Normalize(in); ok {
			row.Role = string(role)
			row.Family = string(rbac.FamilyOf(role))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func transitionsCmd() *cobra.Command {
	var role, from string
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Show the status changes a role may make",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := rbac.Normalize(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			sources := rbac.Statuses()
			if from != "" {
				s, ok := rbac.ParseStatus(from)
				if !ok {
					return fmt.Errorf("unknown status %q", from)
				}
				sources = []rbac.Status{s}
			}

			allowed := make(map[rbac.Status][]rbac.Status, len(sources))
			for _, s := range sources {
				allowed[s] = rbac.AllowedTransitions(s, r)
			}
			if viper.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), allowed)
			}
			return renderTransitions(cmd.OutOrStdout(), r, sources, allowed)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role to evaluate (aliases accepted)")
	cmd.Flags().StringVar(&from, "from", "", "only show transitions out of this status")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func renderTransitions(w io.Writer, role rbac.Role, sources []rbac.Status, allowed map[rbac.Status][]rbac.Status) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Transitions for " + string(role))
	tw.AppendHeader(table.Row{"From", "To"})
	for _, s := range sources {
		targets := allowed[s]
		if len(targets) == 0 {
			tw.AppendRow(table.Row{s.Label(), "-"})
			continue
		}
		labels := make([]string, len(targets))
		for i, t := range targets {
			labels[i] = t.Label()
		}
		tw.AppendRow(table.Row{s.Label(), strings.Join(labels, ", ")})
	}
	tw.Render()
	return nil
}

type decideOptions struct {
	role         string
	user         string
	anonymous    bool
	requireRoles []string
	families     []string
	capabilities []string
	from         string
	to           string
}

func decideCmd() *cobra.Command {
	var opts decideOptions
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate an access decision",
		Example: `  policyctl decide --role hop --family executive
  policyctl decide --role patron --from forwarded --to approved
  policyctl decide --anonymous --capability canViewRequests`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, req, ctx, err := opts.build()
			if err != nil {
				return err
			}
			guard := access.NewGuard(viper.GetString("login-path"), viper.GetString("fallback-path"))
			decision := guard.Decide(id, req, ctx)
			if viper.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), decision)
			}
			renderDecision(cmd.OutOrStdout(), req, decision)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.role, "role", "", "caller role")
	cmd.Flags().StringVar(&opts.user, "user", "cli", "caller user id")
	cmd.Flags().BoolVar(&opts.anonymous, "anonymous", false, "evaluate as an unauthenticated caller")
	cmd.Flags().StringSliceVar(&opts.requireRoles, "require-role", nil, "required role (repeatable, any of)")
	cmd.Flags().StringSliceVar(&opts.families, "family", nil, "required family (repeatable, any of)")
	cmd.Flags().StringSliceVar(&opts.capabilities, "capability", nil, "required capability (repeatable, all of)")
	cmd.Flags().StringVar(&opts.from, "from", "", "current request status")
	cmd.Flags().StringVar(&opts.to, "to", "", "target request status")
	return cmd
}

func (o decideOptions) build() (access.Identity, *access.Requirement, access.Context, error) {
	id := access.Identity{IsAuthenticated: !o.anonymous, Role: o.role, UserID: o.user}
	if o.anonymous {
		id.UserID = ""
	} else if o.role == "" {
		return id, nil, access.Context{}, fmt.Errorf("--role is required unless --anonymous is set")
	}

	req := &access.Requirement{Roles: o.requireRoles}
	for _, f := range o.families {
		fam, ok := rbac.ParseFamily(f)
		if !ok {
			return id, nil, access.Context{}, fmt.Errorf("unknown family %q", f)
		}
		req.Families = append(req.Families, fam)
	}
	for _, c := range o.capabilities {
		capability, ok := rbac.ParseCapability(c)
		if !ok {
			return id, nil, access.Context{}, fmt.Errorf("unknown capability %q", c)
		}
		req.Capabilities = append(req.Capabilities, capability)
	}

	if (o.from == "") != (o.to == "") {
		return id, nil, access.Context{}, fmt.Errorf("--from and --to must be given together")
	}
	return id, req, access.Context{CurrentStatus: o.from, TargetStatus: o.to}, nil
}

func renderDecision(w io.Writer, req *access.Requirement, d access.Decision) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRow(table.Row{"Requirement", req.String()})
	tw.AppendRow(table.Row{"Decision", d.Kind})
	if d.Reason != "" {
		tw.AppendRow(table.Row{"Reason", d.Reason})
	}
	if d.Redirect != "" {
		tw.AppendRow(table.Row{"Redirect", d.Redirect})
	}
	if d.CurrentStatus != "" || d.TargetStatus != "" {
		tw.AppendRow(table.Row{"Transition", fmt.Sprintf("%s -> %s", d.CurrentStatus, d.TargetStatus)})
	}
	if d.Notice != nil {
		tw.AppendRow(table.Row{"Notice", fmt.Sprintf("[%s] %s: %s", d.Notice.Kind, d.Notice.Title, d.Notice.Message)})
	}
	tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
