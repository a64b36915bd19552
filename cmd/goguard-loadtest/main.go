package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	redisAddr  string
	backend    string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "goguard-loadtest",
		Short:        "Exercise a goGuard instance under load",
		Long:         "Drive concurrent login attempts through a guard and report outcomes and latency",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&backend, "backend", "memory", "attempt store: memory, redis, or miniredis")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "redis address for --backend=redis; defaults to REDIS_ADDR")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or TOML guard config")

	rootCmd.AddCommand(
		runCmd(),
		scenarioCmd(),
		compareCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (goGuard.Config, error) {
	if configPath == "" {
		cfg := goGuard.DefaultConfig()
		cfg.Eviction.Enabled = false
		return cfg, nil
	}
	return goGuard.LoadConfigFile(configPath)
}

// buildGuard returns a guard on the selected backend and a cleanup func.
func buildGuard(cfg goGuard.Config) (*goGuard.Guard, func(), error) {
	b := goGuard.New().WithConfig(cfg)

	var cleanup []func()
	switch backend {
	case "memory":
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = append(cleanup, func() { _ = client.Close() }, mr.Close)
		b.WithRedis(client)
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	case "redis":
		addr := redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			return nil, nil, errors.New("--redis-addr or REDIS_ADDR is required for --backend=redis")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = append(cleanup, func() { _ = client.Close() })
		b.WithRedis(client)
		fmt.Printf("using redis at %s\n", addr)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}

	done := func() {
		for _, fn := range cleanup {
			fn()
		}
	}

	g, err := b.Build()
	if err != nil {
		done()
		return nil, nil, err
	}
	return g, func() {
		g.Close()
		done()
	}, nil
}

func runCmd() *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Hammer Check with concurrent attempts across many identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.identities <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("identities, concurrency, and ops must be > 0")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, cleanup, err := buildGuard(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			res := runLoad(ctx, g, opts)
			printLoadResult(os.Stdout, res, cfg.Thresholds.Lock)
			if res.violations > 0 {
				return fmt.Errorf("%d identities were allowed more than %d attempts", res.violations, cfg.Thresholds.Lock)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.identities, "identities", 1000, "distinct identities to attack")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 256, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 200000, "total attempts")
	cmd.Flags().Float64Var(&opts.tokenRate, "token-rate", 0.5, "fraction of attempts carrying a challenge token")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline")

	return cmd
}

func scenarioCmd() *cobra.Command {
	var base time.Duration

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Walk one identity through the challenge and lock tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Delay.Base = base
			if cfg.Delay.Max > 0 && cfg.Delay.Max < base {
				cfg.Delay.Max = base
			}

			g, cleanup, err := buildGuard(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			steps, err := runScenario(cmd.Context(), g, "198.51.100.1")
			if err != nil {
				return err
			}
			printScenario(os.Stdout, steps)
			return nil
		},
	}

	cmd.Flags().DurationVar(&base, "delay-base", 10*time.Millisecond, "base failure delay for the walk-through")

	return cmd
}
