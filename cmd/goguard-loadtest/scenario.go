package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type scenarioStep struct {
	label   string
	outcome string
	count   int
	delay   time.Duration
	result  string
}

// runScenario walks identity through every tier: three wrong passwords, a
// tokenless fourth attempt, a tokened retry, a denial, and a success after
// the record is reset.
func runScenario(ctx context.Context, g *goGuard.Guard, identity string) ([]scenarioStep, error) {
	wrong := func(context.Context, string) (bool, error) { return false, nil }
	right := func(context.Context, string) (bool, error) { return true, nil }

	plan := []struct {
		label  string
		token  string
		verify goGuard.VerifyFunc
	}{
		{"attempt 1, wrong password", "", wrong},
		{"attempt 2, wrong password", "", wrong},
		{"attempt 3, wrong password", "", wrong},
		{"attempt 4, no token", "", right},
		{"attempt 4 retried with token", "tok", wrong},
		{"attempt 6, with token", "tok", right},
	}

	steps := make([]scenarioStep, 0, len(plan)+1)
	for _, p := range plan {
		t0 := time.Now()
		d, err := g.Protect(ctx, goGuard.Attempt{Identity: identity, ChallengeToken: p.token}, p.verify)
		steps = append(steps, scenarioStep{
			label:   p.label,
			outcome: d.Outcome.String(),
			count:   d.Count,
			delay:   time.Since(t0),
			result:  resultLabel(err),
		})
		if ctx.Err() != nil {
			return steps, ctx.Err()
		}
	}

	if err := g.ResetIdentity(ctx, identity); err != nil {
		return steps, err
	}
	d, err := g.Protect(ctx, goGuard.Attempt{Identity: identity}, right)
	steps = append(steps, scenarioStep{
		label:   "after reset, right password",
		outcome: d.Outcome.String(),
		count:   d.Count,
		result:  resultLabel(err),
	})
	return steps, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func printScenario(w io.Writer, steps []scenarioStep) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOUTCOME\tCOUNT\tELAPSED\tRESULT")
	for _, s := range steps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.label, s.outcome, s.count, s.delay.Round(time.Millisecond), s.result)
	}
	tw.Flush()
}
