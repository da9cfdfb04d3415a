package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rbr-console/internal/auth"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/session"
	"github.com/felixgeelhaar/rbr-console/internal/tui"
	"github.com/felixgeelhaar/rbr-console/internal/users"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts without the interactive console",
		Long: `Manage RBR user accounts from scripts.

Every invocation signs in, performs one operation and discards the
session. Credentials come from --email and --password, or from the
RBR_EMAIL and RBR_PASSWORD environment variables. Only SCM Admins may
manage users.

A user is referenced by numeric id or by email.

Examples:
  # List all users
  RBR_EMAIL=scm@rbr.local RBR_PASSWORD=... rbr users list

  # Create a user
  rbr users create "Ada Lovelace" ada@rbr.local --role "Sales Engineer" --new-password 'S3cure!pw'

  # Deactivate or reactivate a user
  rbr users toggle ada@rbr.local

  # Delete a user
  rbr users delete 7 --yes
`,
	}

	cmd.PersistentFlags().String("email", "", "login email (default $RBR_EMAIL)")
	cmd.PersistentFlags().String("password", "", "login password (default $RBR_PASSWORD)")

	cmd.AddCommand(
		newUsersListCmd(),
		newUsersCreateCmd(),
		newUsersUpdateCmd(),
		newUsersToggleCmd(),
		newUsersDeleteCmd(),
	)
	return cmd
}

func newUsersListCmd() *cobra.Command {
	var (
		asJSON bool
		page   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			us, err := openUsers(cmd)
			if err != nil {
				return err
			}
			defer us.Close()

			records := us.workflow.State().Records
			if page > 0 {
				us.workflow.SetPage(page - 1)
				records = us.workflow.Visible()
			}

			if asJSON {
				if records == nil {
					records = []users.Record{}
				}
				return writeJSON(cmd.OutOrStdout(), records)
			}
			printUsers(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&page, "page", 0, "print only this page (1-based) at the configured page size")
	return cmd
}

func newUsersCreateCmd() *cobra.Command {
	var (
		roleName string
		password string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create <name> <email>",
		Short: "Create a user",
		Long: `Create a user.

The password must be at least 8 characters and contain an uppercase
letter, a digit and one of !@#$%^&*. When --role or --new-password is
omitted on a terminal, you are prompted for it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if roleName == "" && tui.ShouldPrompt() {
				selected, err := tui.Choose(cmd.Context(), "Role Assignment", role.Names())
				if err != nil {
					return err
				}
				roleName = selected
			}
			if password == "" && tui.ShouldPrompt() {
				pw, err := promptNewPassword(cmd.Context())
				if err != nil {
					return err
				}
				password = pw
			}

			us, err := openUsers(cmd)
			if err != nil {
				return err
			}
			defer us.Close()

			form := users.NewCreateForm()
			form.Name = args[0]
			form.Email = args[1]
			form.Role = roleName
			form.Password = password
			form.ConfirmPassword = password
			form.Active = !inactive

			if err := us.workflow.Create(cmd.Context(), form); err != nil {
				return err
			}
			return us.report(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "role: one of "+strings.Join(role.Names(), ", "))
	cmd.Flags().StringVar(&password, "new-password", "", "initial password")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account deactivated")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var (
		name     string
		email    string
		roleName string
		password string
		active   bool
	)

	cmd := &cobra.Command{
		Use:   "update <id|email>",
		Short: "Update a user's details",
		Long: `Update a user's details. Only the fields you pass change; the password
is sent only when --new-password is given. Root administrators cannot be
edited.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("new-email") && !flags.Changed("role") &&
				!flags.Changed("new-password") && !flags.Changed("active") {
				return errors.New(errors.ErrCodeValidationFailed, "nothing to update").
					WithSuggestion("Pass at least one of --name, --new-email, --role, --new-password, --active")
			}

			us, err := openUsers(cmd)
			if err != nil {
				return err
			}
			defer us.Close()

			rec, err := us.resolve(args[0])
			if err != nil {
				return err
			}
			if err := us.workflow.OpenEdit(rec.ID); err != nil {
				return err
			}

			form := users.EditFormFor(rec)
			if flags.Changed("name") {
				form.Name = name
			}
			if flags.Changed("new-email") {
				form.Email = email
			}
			if flags.Changed("role") {
				form.Role = roleName
			}
			if flags.Changed("new-password") {
				form.Password = password
			}
			if flags.Changed("active") {
				form.Active = active
			}

			if err := us.workflow.Edit(cmd.Context(), rec.ID, form); err != nil {
				return err
			}
			return us.report(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new full name")
	cmd.Flags().StringVar(&email, "new-email", "", "new email / username")
	cmd.Flags().StringVar(&roleName, "role", "", "new role")
	cmd.Flags().StringVar(&password, "new-password", "", "new password")
	cmd.Flags().BoolVar(&active, "active", true, "account active")
	return cmd
}

func newUsersToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id|email>",
		Short: "Flip a user between active and inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			us, err := openUsers(cmd)
			if err != nil {
				return err
			}
			defer us.Close()

			rec, err := us.resolve(args[0])
			if err != nil {
				return err
			}
			if err := us.workflow.ToggleStatus(cmd.Context(), rec.ID); err != nil {
				return err
			}
			return us.report(cmd.OutOrStdout())
		},
	}
}

func newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id|email>",
		Short: "Delete a user",
		Long: `Delete a user. This cannot be undone. Without --yes you are asked to
confirm on a terminal. Root administrators cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			us, err := openUsers(cmd)
			if err != nil {
				return err
			}
			defer us.Close()

			rec, err := us.resolve(args[0])
			if err != nil {
				return err
			}
			if err := us.workflow.RequestDelete(rec.ID); err != nil {
				return err
			}

			if !yes {
				if !tui.ShouldPrompt() {
					return errors.New(errors.ErrCodeNothingSelected, "deletion not confirmed").
						WithSuggestion("Pass --yes to delete without a prompt")
				}
				ok, err := tui.ConfirmDelete(cmd.Context(), rec.Name)
				if err != nil {
					return err
				}
				if !ok {
					us.workflow.CloseDialog()
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled") //nolint:errcheck
					return nil
				}
			}

			if err := us.workflow.ConfirmDelete(cmd.Context()); err != nil {
				return err
			}
			return us.report(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// userSession is a signed-in workflow for one command.
type userSession struct {
	cc       *CommandContext
	auth     *auth.Authenticator
	workflow *users.Workflow
}

// openUsers signs in and loads the user list.
func openUsers(cmd *cobra.Command) (*userSession, error) {
	cc, err := NewCommandContext(cmd, false)
	if err != nil {
		return nil, err
	}

	email, password, err := credentials(cmd, cc)
	if err != nil {
		cc.Close() //nolint:errcheck
		return nil, err
	}

	sess := session.New()
	client := cc.Client(cc.Config.BaseURL, sess)
	a := auth.NewAuthenticator(client, sess, cc.Logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := a.Login(ctx, email, password); err != nil {
		cc.Close() //nolint:errcheck
		return nil, err
	}

	us := &userSession{cc: cc, auth: a, workflow: users.New(client, cc.Logger)}
	if err := us.workflow.SetPageSize(cc.Config.PageSize); err != nil {
		us.Close()
		return nil, err
	}
	if err := us.workflow.Load(ctx); err != nil {
		us.Close()
		return nil, err
	}
	return us, nil
}

// credentials takes the login pair from flags, then RBR_EMAIL and
// RBR_PASSWORD, prompting for a missing password on a terminal.
func credentials(cmd *cobra.Command, cc *CommandContext) (string, string, error) {
	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return "", "", err
	}
	password, err := cmd.Flags().GetString("password")
	if err != nil {
		return "", "", err
	}
	if email == "" {
		email = cc.Config.Email
	}
	if password == "" {
		password = cc.Config.Password
	}

	if email != "" && password == "" && tui.ShouldPrompt() {
		password, err = tui.Ask(cmd.Context(), tui.Prompt{
			Title:    "Password for " + email,
			Secret:   true,
			Required: true,
		})
		if err != nil {
			return "", "", err
		}
	}

	if email == "" || password == "" {
		return "", "", errors.New(errors.ErrCodeCredentialsMissing, "no login credentials").
			WithSuggestions(
				"Pass --email and --password",
				"Or set RBR_EMAIL and RBR_PASSWORD",
			)
	}
	return email, password, nil
}

func promptNewPassword(ctx context.Context) (string, error) {
	password, err := tui.Ask(ctx, tui.Prompt{
		Title:    "Password",
		Secret:   true,
		Required: true,
		Validate: users.ValidatePassword,
	})
	if err != nil {
		return "", err
	}
	confirm, err := tui.Ask(ctx, tui.Prompt{
		Title:    "Confirm",
		Secret:   true,
		Required: true,
	})
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", errors.NewValidationError("confirm_password: Passwords must match")
	}
	return password, nil
}

// resolve finds a user by numeric id or email.
func (us *userSession) resolve(ref string) (users.Record, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if rec, ok := us.workflow.Find(id); ok {
			return rec, nil
		}
	}
	for _, rec := range us.workflow.State().Records {
		if strings.EqualFold(rec.Email, ref) {
			return rec, nil
		}
	}
	return users.Record{}, errors.New(errors.ErrCodeRecordNotFound, fmt.Sprintf("no user matches %q", ref)).
		WithSuggestion("Run 'rbr users list' to see ids and emails")
}

// report prints the workflow's notification for the finished operation.
func (us *userSession) report(w io.Writer) error {
	if n := us.workflow.State().Notification; n != nil {
		_, err := fmt.Fprintln(w, n.Message)
		return err
	}
	return nil
}

// Close ends the session.
func (us *userSession) Close() {
	us.auth.Logout()
	us.cc.Close() //nolint:errcheck
}

func printUsers(w io.Writer, records []users.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No users found.") //nolint:errcheck
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATUS\tPROTECTED") //nolint:errcheck
	fmt.Fprintln(tw, "--\t----\t-----\t----\t------\t---------") //nolint:errcheck
	for _, r := range records {
		protected := "no"
		if r.Protected {
			protected = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Email, r.Role, r.Status(), protected) //nolint:errcheck
	}
	tw.Flush() //nolint:errcheck
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
