package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/matching"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/scoring"
)

const (
	PromptBack     = "back"
	PromptNextPage = "next page"
	PromptExit     = "exit"
)

var (
	errExit = errors.New("exit requested")
	errBack = errors.New("back requested")
)

var reviewCmd = &cobra.Command{
	Use:   "review JOB_ID",
	Short: "Walk through ranked helpers of a job and record decisions interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			req, err := matchRequest(cmd, args[0])
			if err != nil {
				return err
			}

			job, err := a.backend.GetJob(ctx, req.JobID)
			if err != nil {
				return fmt.Errorf("loading job %q: %w", req.JobID, err)
			}

			userID, _ := cmd.Flags().GetString("user")
			if strings.TrimSpace(userID) == "" {
				userID = job.EmployerID
			}
			if userID == "" {
				return errors.New("the job has no employer, pass --user")
			}

			err = review(ctx, a, job, userID, req)
			if errors.Is(err, errExit) {
				return nil
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	addPageFlags(reviewCmd)
	reviewCmd.Flags().StringP("user", "u", "", "acting user recorded with decisions (default is the job's employer)")
}

// review shows one page at a time. Decided helpers leave the list, the page is
// refreshed after every decision so a retrain hint is seen at once.
func review(ctx context.Context, a *application, job records.JobRecord, userID string, req matching.Request) error {
	decided := make(map[string]bool)

	for {
		res, err := a.matcher.FindMatches(ctx, req)
		if err != nil {
			return err
		}

		pending := undecided(res.Matches, decided)
		items := make([]string, 0, len(pending)+2)
		for _, m := range pending {
			items = append(items, matchLabel(m))
		}
		if res.HasMore {
			items = append(items, PromptNextPage)
		}

		matchPrompt := promptui.Select{
			Label: fmt.Sprintf("Helpers for %q (%d matches). Choose one and press ENTER", job.Title, res.TotalMatches),
			Items: append(items, PromptExit),
			Size:  12,
		}

		idx, _, err := matchPrompt.Run()
		if err != nil {
			return err
		}

		// Labels are for display only; the index maps back to the match.
		switch {
		case idx < len(pending):
		case res.HasMore && idx == len(pending):
			req.Offset += req.Limit
			continue
		default:
			return errExit
		}

		helperID := pending[idx].HelperID
		if err := decide(ctx, a, job, userID, helperID); err != nil {
			if errors.Is(err, errBack) {
				continue
			}
			return err
		}
		decided[helperID] = true
	}
}

func decide(ctx context.Context, a *application, job records.JobRecord, userID, helperID string) error {
	helper, err := a.backend.GetHelper(ctx, helperID)
	if err != nil {
		return fmt.Errorf("there is no such helper id %s: %w", helperID, err)
	}

	actions := make([]string, 0, len(records.Actions)+1)
	for _, action := range records.Actions {
		actions = append(actions, string(action))
	}

	actionPrompt := promptui.Select{
		Label: fmt.Sprintf("Decision for %s", helperID),
		Items: append(actions, PromptBack),
	}

	_, action, err := actionPrompt.Run()
	if err != nil {
		return err
	}
	if action == PromptBack {
		return errBack
	}

	now := time.Now()
	res, err := a.tracker.TrackDecision(ctx, records.Decision{
		ActingUserID: userID,
		HelperID:     helperID,
		JobID:        job.ID,
		Action:       records.Action(action),
		Timestamp:    now,
		Snapshot:     decisions.Snapshot(job, helper, now),
	})
	if err != nil {
		return err
	}

	a.logger.Info("decision recorded",
		append(logger.MatchFields(job.ID, helperID), zap.String("action", action))...,
	)

	if res.ShouldRetrain {
		a.logger.Info("enough recent decisions to retrain",
			zap.String(logger.FieldUserID, userID),
			zap.String("hint", "run 'helper-matcher retrain request "+userID+"'"),
		)
	}
	return nil
}

// undecided keeps the page order and drops helpers decided in this session.
func undecided(matches []scoring.Match, decided map[string]bool) []scoring.Match {
	out := make([]scoring.Match, 0, len(matches))
	for _, m := range matches {
		if !decided[m.HelperID] {
			out = append(out, m)
		}
	}
	return out
}

func matchLabel(m scoring.Match) string {
	label := fmt.Sprintf("%s %.2f", m.HelperID, m.Similarity)
	if len(m.Reasons) > 0 {
		label += " / " + strings.Join(m.Reasons, ", ")
	}
	return label
}
