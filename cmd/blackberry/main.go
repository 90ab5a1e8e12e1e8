package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/internal/executor"
	"github.com/eigerco/blackberry/internal/replay"
	"github.com/eigerco/blackberry/internal/state"
	"github.com/eigerco/blackberry/pkg/db/pebble"
	"github.com/eigerco/blackberry/pkg/log"
	"github.com/eigerco/blackberry/pkg/rpc"
)

// sharedFlags are common to every subcommand
type sharedFlags struct {
	logLevel             string
	logFormat            string
	runtimePath          string
	disableSpecNameCheck bool
}

// liveFlags describe a live state source
type liveFlags struct {
	uri            string
	at             string
	pallets        []string
	hashedPrefixes []string
	childTree      bool
}

func (f *liveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.uri, "uri", "", "ws uri of the node to fetch state from")
	cmd.Flags().StringVar(&f.at, "at", "", "block hash to fetch state at; defaults to the best block")
	cmd.Flags().StringSliceVar(&f.pallets, "pallet", nil, "restrict the scrape to the given pallets")
	cmd.Flags().StringSliceVar(&f.hashedPrefixes, "hashed-prefix", nil, "additional hex key prefixes to scrape")
	cmd.Flags().BoolVar(&f.childTree, "child-tree", false, "include child trie data in the scrape")
	_ = cmd.MarkFlagRequired("uri")
}

func (f *liveFlags) toSpec() (state.Live, error) {
	live := state.Live{
		URI:       f.uri,
		Pallets:   f.pallets,
		ChildTree: f.childTree,
	}
	if f.at != "" {
		at, err := crypto.ParseHash(f.at)
		if err != nil {
			return state.Live{}, fmt.Errorf("%w: --at: %v", replay.ErrConfiguration, err)
		}
		live.At = &at
	}
	for _, prefix := range f.hashedPrefixes {
		raw, err := hex.DecodeString(strings.TrimPrefix(prefix, "0x"))
		if err != nil {
			return state.Live{}, fmt.Errorf("%w: --hashed-prefix %q: %v", replay.ErrConfiguration, prefix, err)
		}
		live.HashedPrefixes = append(live.HashedPrefixes, raw)
	}
	return live, nil
}

func initLogging(shared *sharedFlags) error {
	level, err := log.ParseLogLevel(shared.logLevel)
	if err != nil {
		return fmt.Errorf("%w: --log-level: %v", replay.ErrConfiguration, err)
	}
	loggerType := log.ConsoleLogger
	if shared.logFormat == "json" {
		loggerType = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: loggerType})
	return nil
}

func dialChain(ctx context.Context, uri string) (state.ChainClient, error) {
	return rpc.Dial(ctx, uri)
}

// executeBlockCommand replays one block on top of its parent state
func executeBlockCommand(shared *sharedFlags) *cobra.Command {
	var (
		tryState   string
		blockWSURI string
		proofMode  bool
	)

	cmd := &cobra.Command{
		Use:   "execute-block",
		Short: "Re-execute a block on top of the state of its parent",
		Long: "Fetches the state of the block preceding the target, rebuilds " +
			"externalities from it and drives the candidate runtime's " +
			"execute-block entry point with the target block, with state-root " +
			"and signature checks disabled.",
	}
	cmd.PersistentFlags().StringVar(&tryState, "try-state", "all",
		"which invariants to check after applying the block: all, none, rr-<N>, or a comma separated pallet list")
	cmd.PersistentFlags().StringVar(&blockWSURI, "block-ws-uri", "",
		"ws uri to fetch the block to execute from; defaults to the live state uri")
	cmd.PersistentFlags().BoolVar(&proofMode, "proof", false,
		"record a state-access proof during execution")

	buildConfig := func(spec state.Spec) (replay.Config, error) {
		selector, err := replay.ParseTryStateSelect(tryState)
		if err != nil {
			return replay.Config{}, err
		}
		return replay.Config{
			State:                spec,
			BlockWSURI:           blockWSURI,
			TryState:             selector,
			DisableSpecNameCheck: shared.disableSpecNameCheck,
			ProofMode:            proofMode,
			Dial:                 dialChain,
		}, nil
	}

	run := func(cmd *cobra.Command, spec state.Spec) error {
		cfg, err := buildConfig(spec)
		if err != nil {
			return err
		}
		engine, err := executor.BuildEngine(shared.runtimePath)
		if err != nil {
			return err
		}

		outcome, err := replay.Run(cmd.Context(), cfg, engine)
		if err != nil {
			if outcome != nil && !outcome.Proof.Empty() {
				log.Replay.Warn().
					Int("entries", len(outcome.Proof.Entries)).
					Msg("partial proof collected up to the failure point")
			}
			return err
		}

		log.Replay.Info().
			Str("block", outcome.Target.ExecuteHash.String()).
			Uint64("number", uint64(outcome.Target.ExecuteNumber)).
			Msg("block executed")
		if outcome.Proof != nil {
			log.Replay.Info().
				Int("entries", len(outcome.Proof.Entries)).
				Msg("state-access proof recorded")
		}
		return nil
	}

	live := &liveFlags{}
	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Use a running node as the state source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := live.toSpec()
			if err != nil {
				return err
			}
			return run(cmd, spec)
		},
	}
	live.register(liveCmd)

	var snapPath string
	snapCmd := &cobra.Command{
		Use:   "snap",
		Short: "Use a local snapshot as the state source (not supported by execute-block)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, state.Snap{Path: snapPath})
		},
	}
	snapCmd.Flags().StringVar(&snapPath, "path", "", "snapshot path")
	_ = snapCmd.MarkFlagRequired("path")

	cmd.AddCommand(liveCmd, snapCmd)
	return cmd
}

// createSnapshotCommand scrapes a live state into a local snapshot
func createSnapshotCommand() *cobra.Command {
	var (
		snapshotPath string
		check        bool
	)
	live := &liveFlags{}

	cmd := &cobra.Command{
		Use:   "create-snapshot",
		Short: "Scrape a live state and write it to a local snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := live.toSpec()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := dialChain(ctx, spec.URI)
			if err != nil {
				return err
			}
			defer client.Close()

			resolved, err := spec.ResolveAt(ctx, client)
			if err != nil {
				return err
			}
			raw, err := resolved.Scrape(ctx, client)
			if err != nil {
				return err
			}

			store, err := pebble.Open(snapshotPath)
			if err != nil {
				return fmt.Errorf("open snapshot %s: %w", snapshotPath, err)
			}
			defer store.Close()

			if err := state.WriteSnapshot(store, raw); err != nil {
				return err
			}

			if check {
				loaded, err := state.ReadSnapshot(store)
				if err != nil {
					return fmt.Errorf("snapshot verification: %w", err)
				}
				if len(loaded.Pairs) != len(raw.Pairs) {
					return fmt.Errorf("snapshot verification: %d pairs written, %d read back",
						len(raw.Pairs), len(loaded.Pairs))
				}
			}

			log.Replay.Info().
				Str("path", snapshotPath).
				Str("at", raw.At.String()).
				Int("pairs", len(raw.Pairs)).
				Msg("snapshot written")
			return nil
		},
	}
	live.register(cmd)
	cmd.Flags().StringVar(&snapshotPath, "snapshot-path", "", "where to write the snapshot")
	cmd.Flags().BoolVar(&check, "check", false, "read the snapshot back after writing and verify it")
	_ = cmd.MarkFlagRequired("snapshot-path")

	return cmd
}

func main() {
	shared := &sharedFlags{}

	root := &cobra.Command{
		Use:           "blackberry",
		Short:         "Deterministic state-replay harness for testing runtime upgrades against live chain state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return initLogging(shared)
		},
	}
	root.PersistentFlags().StringVar(&shared.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&shared.logFormat, "log-format", "console", "log format: console or json")
	root.PersistentFlags().StringVar(&shared.runtimePath, "runtime", "", "path to the candidate runtime blob")
	root.PersistentFlags().BoolVar(&shared.disableSpecNameCheck, "disable-spec-name-check", false,
		"skip the chain-identity check against the candidate runtime")

	root.AddCommand(executeBlockCommand(shared), createSnapshotCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Root.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
