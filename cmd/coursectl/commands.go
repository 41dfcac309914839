package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/bissquit/coursehub/internal/client"
	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/version"
)

var errUsage = errors.New("usage")

const defaultServer = "http://localhost:3000"

type command struct {
	name  string
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, e *env, args []string) error
}

type env struct {
	client *client.Client
	prompt *prompter
	out    io.Writer
}

var commands = []command{
	{name: "signup", help: "create an account", run: cmdSignup},
	{name: "login", help: "log in and remember the session", run: cmdLogin},
	{name: "logout", help: "forget the session", run: cmdLogout},
	{name: "me", help: "show the logged in user", run: cmdMe},
	{name: "courses", help: "list all courses", run: cmdCourses},
	{name: "course", args: "ID", nargs: 1, help: "show one course", run: cmdCourse},
	{name: "enroll", args: "ID", nargs: 1, help: "enroll in a course", run: cmdEnroll},
	{name: "unenroll", args: "ID", nargs: 1, help: "leave a course", run: cmdUnenroll},
	{name: "enrolled", help: "list your courses", run: cmdEnrolled},
	{name: "version", help: "print the client version", run: cmdVersion},
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("coursectl", flag.ContinueOnError)
	fs.SetOutput(out)
	server := fs.String("server", envOr("COURSEHUB_SERVER_URL", defaultServer), "API base URL")
	sessionPath := fs.String("session", defaultSessionPath(), "session file")
	fs.Usage = func() { usage(out, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil || len(rest) != cmd.nargs {
		fs.Usage()
		return errUsage
	}

	session, err := client.NewSessionCache(*sessionPath)
	if err != nil {
		return err
	}

	e := &env{
		client: client.New(*server, session, client.WithNotifier(nil)),
		prompt: newPrompter(in, out),
		out:    out,
	}
	err = cmd.run(ctx, e, rest)
	if client.IsUnauthorized(err) && name != "login" {
		return fmt.Errorf("%w (run 'coursectl login')", err)
	}
	return err
}

func usage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: coursectl [flags] <command> [args]")
	fmt.Fprintln(out, "\nCommands:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.help)
	}
	_ = tw.Flush()
	fmt.Fprintln(out, "\nFlags:")
	fs.PrintDefaults()
}

func cmdSignup(ctx context.Context, e *env, _ []string) error {
	email, err := e.prompt.text("Email")
	if err != nil {
		return err
	}
	username, err := e.prompt.text("Username")
	if err != nil {
		return err
	}
	password, err := e.prompt.password()
	if err != nil {
		return err
	}

	msg, err := e.client.Signup(ctx, email, password, username)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, msg)
	return nil
}

func cmdLogin(ctx context.Context, e *env, _ []string) error {
	email, err := e.prompt.text("Email")
	if err != nil {
		return err
	}
	password, err := e.prompt.password()
	if err != nil {
		return err
	}

	user, err := e.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdLogout(_ context.Context, e *env, _ []string) error {
	if err := e.client.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Logged out")
	return nil
}

func cmdMe(ctx context.Context, e *env, _ []string) error {
	user, err := e.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s <%s> (id %s)\n", user.Name, user.Email, user.ID)
	return nil
}

func cmdCourses(ctx context.Context, e *env, _ []string) error {
	courses, err := e.client.Courses(ctx)
	if err != nil {
		return err
	}
	printCourses(e.out, courses)
	return nil
}

func cmdCourse(ctx context.Context, e *env, args []string) error {
	course, err := e.client.Course(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\n%s\nInstructor: %s\nPrice: %.2f\n", course.Title, course.Description, course.Instructor, course.Price)
	return nil
}

func cmdEnroll(ctx context.Context, e *env, args []string) error {
	course, err := e.client.Enroll(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Enrolled in %s\n", course.Title)
	return nil
}

func cmdUnenroll(ctx context.Context, e *env, args []string) error {
	if err := e.client.Unenroll(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Unenrolled from %s\n", args[0])
	return nil
}

func cmdEnrolled(ctx context.Context, e *env, _ []string) error {
	courses, err := e.client.EnrolledCourses(ctx)
	if err != nil {
		return err
	}
	printCourses(e.out, courses)
	return nil
}

func cmdVersion(_ context.Context, e *env, _ []string) error {
	_, err := fmt.Fprintf(e.out, "coursectl %s\n", version.Get())
	return err
}

func printCourses(out io.Writer, courses []domain.Course) {
	if len(courses) == 0 {
		fmt.Fprintln(out, "No courses.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tINSTRUCTOR\tPRICE")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", c.ID, c.Title, c.Instructor, c.Price)
	}
	_ = tw.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".coursehub-session.json"
	}
	return filepath.Join(dir, "coursehub", "session.json")
}
