package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/session"
)

// sessionTTL is the duration for CLI sessions (30 days).
const sessionTTL = 30 * 24 * time.Hour

// loginCommand creates the classroom login command.
func (c *CLI) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [number]",
		Short: "Log in to the classroom as a teacher",
		Long: `Log in to the classroom API with your teacher number.

The login is stored in ~/.config/treereplay/sessions/ and used by commands
that take --assignment and --student. Without an argument the number is
read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if existing, _ := c.loadLogin(ctx); existing != nil && existing.Teacher != nil {
				printInfo("Already logged in as %s", StyleHighlight.Render(existing.Teacher.Name))
				printDetail("Run '%s logout' first to switch accounts", appName)
				return nil
			}

			var number string
			if len(args) == 1 {
				number = args[0]
			} else {
				printInline("Teacher number: ")
				n, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				number = n
			}
			_, err := c.runLogin(ctx, number)
			return err
		},
	}
}

// runLogin authenticates with the classroom and saves the session.
func (c *CLI) runLogin(ctx context.Context, number string) (*session.Session, error) {
	client, err := c.newClassroom(cache.NewNullCache())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var login *classroom.Session
	err = spin(ctx, "Logging in...", "Login failed", func(ctx context.Context) error {
		var err error
		login, err = client.Login(ctx, number)
		return err
	})
	if err != nil {
		return nil, err
	}

	store, err := c.sessionStore()
	if err != nil {
		return nil, err
	}
	teacher := login.Teacher
	sess := session.New(login.Cookie, &teacher, sessionTTL)
	if err := store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	printSuccess("Logged in as %s", StyleHighlight.Render(teacher.Name))
	printNewline()
	printNextStep("Replay a student", appName+" play --assignment <id> --student <id>")
	return sess, nil
}

// logoutCommand creates the logout command.
func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the classroom session and remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.sessionStore()
			if err != nil {
				return err
			}
			sess, err := store.GetSession(ctx)
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			if sess == nil {
				printInfo("Not logged in")
				return nil
			}

			// The server session may already be gone; local state is
			// removed either way.
			if client, err := c.newClassroom(cache.NewNullCache()); err == nil {
				if err := client.WithSession(sess.Cookie).Logout(ctx); err != nil {
					c.Logger.Debug("classroom logout failed", "error", err)
				}
			}
			if err := store.DeleteSession(ctx); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

// whoamiCommand creates the whoami command.
func (c *CLI) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := c.loadLogin(ctx)
			if err != nil {
				return err
			}
			client, err := c.newClassroom(cache.NewNullCache())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			var students []classroom.Student
			err = spin(ctx, "Verifying session...", "Session invalid", func(ctx context.Context) error {
				var err error
				students, err = client.WithSession(sess.Cookie).Students(ctx)
				return err
			})
			if err != nil {
				return fmt.Errorf("verify session: %w", err)
			}

			printSuccess("Classroom Session")
			if t := sess.Teacher; t != nil {
				printKeyValue("Name", t.Name)
				printKeyValue("Number", t.Number)
			}
			printKeyValue("Students", fmt.Sprint(len(students)))
			printKeyValue("Logged in", sess.CreatedAt.Format("Jan 2, 2006"))
			printKeyValue("Expires", sess.ExpiresAt.Format("Jan 2, 2006"))
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read teacher number: %w", err)
	}
	return strings.TrimSpace(line), nil
}
