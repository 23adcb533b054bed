package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/i18n"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/store"
)

// practiceLearnerID marks attempts taken offline.
const practiceLearnerID = 0

var errQuit = errors.New("practice abandoned")

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Take a timed exam in the terminal and record it locally",
		Args:  cobra.NoArgs,
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.String("file", "", "Exam definition JSON to import and run")
	f.String("exam-id", "", "Run an exam already imported into the practice database")
	f.String("db", "practice.db", "SQLite database path")
	cmd.MarkFlagsOneRequired("file", "exam-id")
	cmd.MarkFlagsMutuallyExclusive("file", "exam-id")
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	cfg, log := loadConfig(v)
	if err := i18n.Init(cfg.DefaultLang); err != nil {
		return err
	}
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer(cfg.DefaultLang))

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	def, err := loadPracticeExam(ctx, db, v.GetString("file"), v.GetString("exam-id"))
	if err != nil {
		return err
	}
	sess, err := exam.NewSession(def, practiceLearnerID, db)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	r := &practiceRunner{
		sess:  sess,
		lines: readLines(cmd.InOrStdin()),
		ticks: ticker.C,
		out:   cmd.OutOrStdout(),
	}
	out, err := r.run(ctx)
	if errors.Is(err, errQuit) {
		return nil
	}
	if err != nil && !errors.Is(err, exam.ErrPersistence) {
		return err
	}
	log.Debug().Str("attempt_id", out.Attempt.ID.String()).Bool("recorded", out.Recorded).Msg("Practice attempt finished")
	return nil
}

func loadPracticeExam(ctx context.Context, db *store.Store, file, examID string) (*model.Exam, error) {
	if file != "" {
		e, err := db.ImportExamFile(ctx, file)
		if err != nil {
			return nil, err
		}
		return db.LoadExamDefinition(ctx, e.ID)
	}
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("invalid exam id: %w", err)
	}
	return db.LoadExamDefinition(ctx, id)
}

// readLines feeds stdin lines to the practice loop. The channel closes at EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// ─── Practice Loop ─────────────────────────────────────────────────────

// practiceRunner drives one session from a single goroutine: every command
// and every clock tick is applied in the order it arrives.
type practiceRunner struct {
	sess  *exam.Session
	lines <-chan string
	ticks <-chan time.Time
	out   io.Writer
}

func (r *practiceRunner) run(ctx context.Context) (exam.Outcome, error) {
	if err := r.sess.Start(); err != nil {
		return exam.Outcome{}, err
	}
	e := r.sess.Exam()
	fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeHeader", map[string]any{
		"Title": e.Title, "Duration": e.DurationMinutes, "Total": e.TotalQuestions(),
	}))
	fmt.Fprintln(r.out, i18n.T(ctx, "PracticeHelp"))
	r.showQuestion(ctx)

	for {
		select {
		case <-ctx.Done():
			return exam.Outcome{}, ctx.Err()

		case _, ok := <-r.ticks:
			if !ok {
				r.ticks = nil
				continue
			}
			out, finished, err := r.sess.Tick(ctx)
			if finished {
				fmt.Fprintln(r.out, i18n.T(ctx, "PracticeTimeUp"))
				r.showResult(ctx, out, err)
				return out, err
			}
			if rem := r.sess.Remaining(); rem%60 == 0 || rem <= 10 {
				fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeRemaining", map[string]any{"Remaining": formatRemaining(rem)}))
			}

		case line, ok := <-r.lines:
			if !ok {
				return exam.Outcome{}, errQuit
			}
			done, err := r.handle(ctx, strings.TrimSpace(line))
			if done || err != nil {
				out, _ := r.sess.Outcome()
				return out, err
			}
		}
	}
}

// handle applies one command. It reports done once the session is over.
func (r *practiceRunner) handle(ctx context.Context, cmd string) (bool, error) {
	snap := r.sess.Snapshot()
	total := snap.TotalQuestions

	switch {
	case cmd == "":
		r.showQuestion(ctx)

	case cmd == "q":
		return true, errQuit

	case cmd == "f":
		out, err := r.sess.Finish(ctx)
		if err != nil && !errors.Is(err, exam.ErrPersistence) {
			return true, err
		}
		r.showResult(ctx, out, err)
		return true, err

	case cmd == "n" || cmd == "p":
		next := snap.Current + 1
		if cmd == "p" {
			next = snap.Current - 1
		}
		if next >= 0 && next < total {
			_ = r.sess.GoTo(next)
		}
		r.showQuestion(ctx)

	case strings.HasPrefix(cmd, "g "):
		n, err := strconv.Atoi(strings.TrimSpace(cmd[2:]))
		if err != nil || r.sess.GoTo(n-1) != nil {
			r.unknown(ctx, cmd)
			return false, nil
		}
		r.showQuestion(ctx)

	default:
		opt, ok := parseOption(cmd)
		if !ok || r.sess.SelectAnswer(opt) != nil {
			r.unknown(ctx, cmd)
			return false, nil
		}
		answered := r.sess.AnsweredCount()
		fmt.Fprintln(r.out, i18n.Tp(ctx, "PracticeAnswered", answered, map[string]any{"Total": total}))
		if snap.Current+1 < total {
			_ = r.sess.GoTo(snap.Current + 1)
			r.showQuestion(ctx)
		}
	}
	return false, nil
}

func (r *practiceRunner) showQuestion(ctx context.Context) {
	q, err := r.sess.CurrentQuestion()
	if err != nil {
		return
	}
	total := r.sess.Exam().TotalQuestions()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeQuestion", map[string]any{"Number": q.Position + 1, "Total": total}))
	fmt.Fprintln(r.out, q.Prompt)
	selected, hasSelection := -1, false
	if sel := r.sess.Snapshot().Selections[q.Position]; sel != nil {
		selected, hasSelection = *sel, true
	}
	for i, opt := range q.Options {
		mark := " "
		if hasSelection && i == selected {
			mark = "*"
		}
		fmt.Fprintf(r.out, " %s %c) %s\n", mark, 'a'+i, opt)
	}
	fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeRemaining", map[string]any{"Remaining": formatRemaining(r.sess.Remaining())}))
}

func (r *practiceRunner) showResult(ctx context.Context, out exam.Outcome, err error) {
	res := out.Result
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeResult", map[string]any{
		"Score": res.ScorePercent, "Correct": res.CorrectCount, "Total": res.TotalQuestions,
	}))
	if res.Passed {
		fmt.Fprintln(r.out, i18n.T(ctx, "PracticePassed"))
	} else {
		fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeFailed", map[string]any{"Threshold": exam.PassThreshold}))
	}
	if err != nil {
		fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeSaveFailed", map[string]any{"Error": err.Error()}))
	}
}

func (r *practiceRunner) unknown(ctx context.Context, input string) {
	fmt.Fprintln(r.out, i18n.Td(ctx, "PracticeUnknownCommand", map[string]any{"Input": input}))
}

// parseOption accepts a-d or 1-4.
func parseOption(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := s[0]
	switch {
	case c >= 'a' && c < 'a'+model.OptionsPerQuestion:
		return int(c - 'a'), true
	case c >= 'A' && c < 'A'+model.OptionsPerQuestion:
		return int(c - 'A'), true
	case c >= '1' && c < '1'+model.OptionsPerQuestion:
		return int(c - '1'), true
	}
	return 0, false
}

func formatRemaining(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
