package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/cleanup"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

var (
	// mockable
	isTerminalFunc = term.IsTerminal
	readLineFunc   = readLine
	openFileFunc   = func(name string) (io.ReadCloser, error) { return os.Open(name) }

	errHelp          = errors.New("help provided")
	errNotConfirmed  = errors.New("data reset not confirmed")
	errNotATerminal  = errors.New("refusing to clear data without -yes outside a terminal")
	errNothingToLoad = errors.New("at least one of -students, -schedule or -teachers is required")
)

type commandLine struct {
	db          *sql.DB
	out         io.Writer
	rosterSvc   *roster.Service
	scheduleSvc *schedule.Service
	teacherSvc  *teacher.Service
	linkSvc     *link.Service
	cleanupSvc  *cleanup.Service
	// sheetSvc is built on first use; it needs the spreadsheet credentials.
	sheetSvc func() (*attendance.Service, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  import -students FILE -schedule FILE -teachers FILE - import data files")
	fmt.Fprintln(cli.out, "  generate - create the missing attendance spreadsheets")
	fmt.Fprintln(cli.out, "  links [-stream S] [-subject S] [-teacher T] - list stored spreadsheet links")
	fmt.Fprintln(cli.out, "  cleardata [-yes] - delete all data")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importStudents := importCmd.String("students", "", "Roster workbook (.xlsx or .xls).")
	importSchedule := importCmd.String("schedule", "", "Schedule JSON file.")
	importTeachers := importCmd.String("teachers", "", "Teachers JSON file.")

	linksCmd := flag.NewFlagSet("links", flag.ContinueOnError)
	linksStream := linksCmd.String("stream", "", "Stream name fragment.")
	linksSubject := linksCmd.String("subject", "", "Subject fragment.")
	linksTeacher := linksCmd.String("teacher", "", "Teacher name fragment.")

	clearCmd := flag.NewFlagSet("cleardata", flag.ContinueOnError)
	clearYes := clearCmd.Bool("yes", false, "Do not ask for confirmation.")

	for _, fs := range []*flag.FlagSet{importCmd, linksCmd, clearCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.importFiles(ctx, *importTeachers, *importStudents, *importSchedule)
	case "generate":
		return cli.generate(ctx)
	case "links":
		if err := linksCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.links(ctx, link.Filter{Stream: *linksStream, Subject: *linksSubject, Teacher: *linksTeacher})
	case "cleardata":
		if err := clearCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !*clearYes {
			if err := cli.confirmClear(); err != nil {
				return err
			}
		}
		return cli.cleanupSvc.ClearAll(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

// importFiles loads teachers, then the roster, then the schedule; empty paths are skipped.
func (cli *commandLine) importFiles(ctx context.Context, teachersPath, studentsPath, schedulePath string) error {
	if teachersPath == "" && studentsPath == "" && schedulePath == "" {
		return errNothingToLoad
	}
	if teachersPath != "" {
		err := cli.withFile(teachersPath, func(r io.Reader) error {
			n, err := cli.teacherSvc.Import(ctx, r)
			if err == nil {
				fmt.Fprintf(cli.out, "teachers imported: %d\n", n)
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	if studentsPath != "" {
		err := cli.withFile(studentsPath, func(r io.Reader) error {
			students, err := cli.rosterSvc.Import(ctx, r)
			if err == nil {
				fmt.Fprintf(cli.out, "students imported: %d\n", len(students))
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	if schedulePath != "" {
		return cli.withFile(schedulePath, func(r io.Reader) error {
			schedules, err := cli.scheduleSvc.Import(ctx, r)
			if err == nil {
				fmt.Fprintf(cli.out, "schedule entries imported: %d\n", len(schedules))
			}
			return err
		})
	}
	return nil
}

func (cli *commandLine) withFile(path string, fn func(r io.Reader) error) error {
	f, err := openFileFunc(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}

func (cli *commandLine) generate(ctx context.Context) error {
	svc, err := cli.sheetSvc()
	if err != nil {
		return err
	}
	result, err := svc.GenerateAll(ctx)
	if err != nil {
		return err
	}

	titles := make([]string, 0, len(result))
	for title := range result {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		fmt.Fprintf(cli.out, "%s: %s\n", title, strings.Join(result[title], ", "))
	}
	return nil
}

func (cli *commandLine) links(ctx context.Context, filter link.Filter) error {
	links, err := cli.linkSvc.Filter(ctx, filter)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STREAM\tSUBJECT\tTEACHER\tLINK")
	for _, l := range links {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.StreamName, l.Subject, l.TeacherName, l.Link)
	}
	return w.Flush()
}

func (cli *commandLine) confirmClear() error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errNotATerminal
	}
	fmt.Fprint(cli.out, "This deletes every student, schedule, teacher and link. Type \"yes\" to continue: ")
	answer, err := readLineFunc()
	if err != nil {
		return err
	}
	if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
		return errNotConfirmed
	}
	return nil
}

func readLine() (string, error) {
	return bufio.NewReader(os.Stdin).ReadString('\n')
}
