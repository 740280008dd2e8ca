// Command queuectl inspects and prunes the video job queue.
//
// Usage:
//
//	queuectl list [-status queued|processing|completed|failed]
//	queuectl queue
//	queuectl show -job-id <id>
//	queuectl cleanup [-days 7]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/logger"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/queue"
)

var errUsage = errors.New("usage: queuectl <list|queue|show|cleanup> [flags]")

func main() {
	cfg := config.Read()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	if err := cfg.ValidateStore(); err != nil {
		log.Fatal().Err(err).Msg("invalid job store configuration")
	}

	store, err := queue.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open job store")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	q := queue.New(store, logger.Component(log, "queue"))
	if err := run(context.Background(), q, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(ctx context.Context, q *queue.Queue, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "list":
		status := fs.String("status", "", "filter by status")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return listJobs(ctx, q, models.JobStatus(*status), out)

	case "queue":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return showQueue(ctx, q, out)

	case "show":
		jobID := fs.String("job-id", "", "job to show")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *jobID == "" {
			return errors.New("-job-id is required for show")
		}
		return showJob(ctx, q, *jobID, out)

	case "cleanup":
		days := fs.Int("days", 7, "keep jobs finished within this many days")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *days < 0 {
			return errors.New("-days must not be negative")
		}
		removed, err := q.CleanupOlderThan(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d old jobs (older than %d days)\n", removed, *days)
		return nil

	default:
		return errUsage
	}
}

func listJobs(ctx context.Context, q *queue.Queue, status models.JobStatus, out io.Writer) error {
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	var (
		jobs []*models.Job
		err  error
	)
	if status != "" {
		jobs, err = q.ListByStatus(ctx, status)
	} else {
		jobs, err = q.All(ctx)
	}
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tCREATED\tTITLE")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n", j.ID, j.Status, j.Progress, formatTime(&j.CreatedAt), clip(j.Request.Title, 30))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: %d jobs\n", len(jobs))
	return nil
}

func showQueue(ctx context.Context, q *queue.Queue, out io.Writer) error {
	snap, err := q.Snapshot(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Queued: %d\nProcessing: %d\n", len(snap.Queued), len(snap.Processing))

	if len(snap.Queued) > 0 {
		fmt.Fprintln(out, "\nQueued jobs:")
		for i, j := range snap.Queued {
			fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, titleOf(j), shortID(j.ID))
		}
	}
	if len(snap.Processing) > 0 {
		fmt.Fprintln(out, "\nProcessing jobs:")
		for _, j := range snap.Processing {
			fmt.Fprintf(out, "  - %s (%d%%) %s\n", titleOf(j), j.Progress, j.Message)
		}
	}
	return nil
}

func showJob(ctx context.Context, q *queue.Queue, jobID string, out io.Writer) error {
	j, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("job %s not found", jobID)
	}

	fmt.Fprintf(out, "ID:        %s\n", j.ID)
	fmt.Fprintf(out, "Status:    %s\n", j.Status)
	fmt.Fprintf(out, "Progress:  %d%%\n", j.Progress)
	fmt.Fprintf(out, "Message:   %s\n", j.Message)
	fmt.Fprintf(out, "Created:   %s\n", formatTime(&j.CreatedAt))
	fmt.Fprintf(out, "Started:   %s\n", formatTime(j.StartedAt))
	fmt.Fprintf(out, "Completed: %s\n", formatTime(j.CompletedAt))
	fmt.Fprintf(out, "\nTitle:  %s\nFormat: %s\nStyle:  %s\nVoice:  %s\n",
		titleOf(j), orNA(j.Request.Format), orNA(j.Request.Style), orNA(j.Request.Voice))

	if j.Status == models.JobStatusCompleted && j.Result != nil {
		fmt.Fprintf(out, "\nVideo ID: %d\nPath:     %s\n", j.Result.ID, j.Result.Path)
	}
	if j.Status == models.JobStatusFailed && j.Error != nil {
		fmt.Fprintf(out, "\nError:\n  %s\n", clip(*j.Error, 200))
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func titleOf(j *models.Job) string {
	return orNA(j.Request.Title)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
