package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"feedtrack/internal/client/api"
	"feedtrack/internal/client/router"
)

var errNotLoggedIn = errors.New("not logged in; run 'feedtrack login' first")

// requireLogin validates the stored session with the server.
func (c *cli) requireLogin(ctx context.Context) error {
	if c.session.Current(ctx).View.Authenticated() {
		return nil
	}
	return errNotLoggedIn
}

func readLine(r io.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo when stdin is a terminal and falls back to
// a plain line for pipes and tests.
func readPassword(cmd *cobra.Command, label string) (string, error) {
	in, w := cmd.InOrStdin(), cmd.ErrOrStderr()
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return readLine(in, w, label)
	}
	fmt.Fprintf(w, "%s: ", label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return string(secret), nil
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func (c *cli) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd, "password"); err != nil {
					return err
				}
			}
			if _, err := c.session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var reg api.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Password == "" {
				var err error
				if reg.Password, err = readPassword(cmd, "password"); err != nil {
					return err
				}
			}
			if _, err := c.session.Register(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s created; run 'feedtrack login -u %s'\n", reg.Username, reg.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "account password (prompted when empty)")
	cmd.Flags().StringVarP(&reg.Role, "role", "r", "student", "student, teacher or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.requireLogin(ctx); err != nil {
				return err
			}
			user, err := c.session.Client().CurrentUser(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s, id %d)\n", user.Username, user.Email, user.Role, user.ID)
			return nil
		},
	}
}

func (c *cli) projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.requireLogin(ctx); err != nil {
				return err
			}
			if err := c.session.Refresh(ctx, router.Decision{View: router.ViewProjects}); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, p := range c.session.Projects.Items() {
				desc := ""
				if p.Description != nil {
					desc = *p.Description
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Name, desc)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) feedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <project-id>",
		Short: "List the feedback of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			if err := c.requireLogin(ctx); err != nil {
				return err
			}
			if _, err := c.session.OpenProject(ctx, projectID); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY")
			for _, f := range c.session.Feedback.Items() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.ID, f.Title, f.Status, f.Priority)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <project-id> <feedback-id> <text>...",
		Short: "Add a comment to a feedback item",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			feedbackID, err := parseID(args[1], "feedback id")
			if err != nil {
				return err
			}
			if err := c.requireLogin(ctx); err != nil {
				return err
			}
			comment, err := c.session.Client().CreateComment(ctx, projectID, feedbackID, api.CommentInput{
				Content: strings.Join(args[2:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %d added\n", comment.ID)
			return nil
		},
	}
}
