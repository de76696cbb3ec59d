package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"adopt-go/internal/adopt"
	"adopt-go/internal/app"
	"adopt-go/internal/auth"
	"adopt-go/internal/config"
	"adopt-go/internal/encryption"
	"adopt-go/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", adopt.ErrorKind(err), err)
		os.Exit(1)
	}
}

// newApp reads the config and creates an AdoptApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Publish", "Adopt").
func newApp(ctx context.Context, operation string) (*app.AdoptApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewAdoptApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "adopt",
	Short:         "Resource adoption ledger",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		dbPath, err := app.InitDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Printf("Database: %s\n", dbPath)
		fmt.Println("Run `adopt config keys` to create the token secret and archive keys.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Treasury:  %s\n", cfg.Treasury.Type)
		fmt.Printf("Tokens:    iss=%s aud=%s ttl=%s\n", cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
		for _, s := range cfg.Events.Sinks {
			fmt.Printf("Sink:      %-10s %-12s encrypt=%t\n", s.Name, s.Type, s.Encrypt)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Create the token secret and the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if _, err := os.Stat(cfg.Auth.SecretPath); errors.Is(err, os.ErrNotExist) {
			if err := auth.GenerateSecret(cfg.Auth.SecretPath); err != nil {
				return err
			}
			fmt.Printf("Token secret written to %s\n", cfg.Auth.SecretPath)
		} else {
			fmt.Printf("Token secret already present at %s\n", cfg.Auth.SecretPath)
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if !enc.IsConfigured() {
			pass, err := promptNewPassphrase()
			if err != nil {
				return err
			}
			if err := enc.Setup(pass); err != nil {
				return fmt.Errorf("creating archive keys: %w", err)
			}
		}

		pub, err := enc.PublicKey()
		if err != nil {
			return err
		}
		fmt.Printf("Archive public key: %s\n", pub)
		return nil
	},
}

// resource command
var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Publish and manage your resources",
}

var resourcePublishCmd = &cobra.Command{
	Use:   "publish ID",
	Short: "Publish a resource for adoption",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[0])
		if err != nil {
			return err
		}

		priceFlag, _ := cmd.Flags().GetString("price")
		price, err := model.ParseAmount(priceFlag)
		if err != nil {
			return err
		}
		minOutput, _ := cmd.Flags().GetUint16("min-output")
		info, _ := cmd.Flags().GetString("info")

		now := time.Now().UTC()
		freezeFlag, _ := cmd.Flags().GetString("freeze")
		freezeAt, err := parseTime(freezeFlag, now)
		if err != nil {
			return fmt.Errorf("--freeze: %w", err)
		}
		harvestFlag, _ := cmd.Flags().GetString("harvest")
		harvestBefore, err := parseTime(harvestFlag, now)
		if err != nil {
			return fmt.Errorf("--harvest: %w", err)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Publish")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Publish(ctx, token(cmd), adopt.PublishRequest{
			ID:            id,
			Price:         price,
			MinOutputKg:   minOutput,
			FreezeAt:      freezeAt,
			HarvestBefore: harvestBefore,
			Info:          []byte(info),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Published %s\n", res.Key())
		fmt.Printf("  price:          %s\n", res.Price)
		fmt.Printf("  freeze at:      %s\n", res.FreezeAt.Format(time.RFC3339))
		fmt.Printf("  harvest before: %s\n", res.HarvestBefore.Format(time.RFC3339))
		return nil
	},
}

var resourceRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Withdraw an unadopted resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Revoke")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Revoke(ctx, token(cmd), id); err != nil {
			return err
		}
		fmt.Printf("Revoked %s\n", args[0])
		return nil
	},
}

var resourceStateCmd = &cobra.Command{
	Use:   "state ID PAYLOAD",
	Short: "Report a state change of a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "ChangeState")
		if err != nil {
			return err
		}
		defer a.Close()

		ev, err := a.ChangeState(ctx, token(cmd), id, []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("Recorded #%d %s\n", ev.Sequence, ev.Hash)
		return nil
	},
}

var resourceShowCmd = &cobra.Command{
	Use:   "show OWNER ID",
	Short: "Show a resource and its contract",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		res, c, err := a.Resource(ctx, model.AccountID(args[0]), id)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", res.Key())
		fmt.Printf("  price:          %s\n", res.Price)
		fmt.Printf("  min output:     %d kg\n", res.MinOutputKg)
		fmt.Printf("  freeze at:      %s\n", res.FreezeAt.Format(time.RFC3339))
		fmt.Printf("  harvest before: %s\n", res.HarvestBefore.Format(time.RFC3339))
		fmt.Printf("  published:      %s\n", res.PublishedAt.Format(time.RFC3339))
		if len(res.Info) > 0 {
			fmt.Printf("  info:           %s\n", res.Info)
		}
		if c == nil {
			fmt.Println("  contract:       none")
			return nil
		}
		fmt.Printf("  contract:       %s adopted by %s at %s\n", c.ID, c.Adopter, c.StartAt.Format(time.RFC3339))
		return nil
	},
}

// take command
var takeCmd = &cobra.Command{
	Use:   "take OWNER ID",
	Short: "Adopt a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Adopt")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Adopt(ctx, token(cmd), model.AccountID(args[0]), id)
		if err != nil {
			return err
		}
		fmt.Printf("Contract %s\n", c.ID)
		fmt.Printf("  paid:  %s\n", c.Price)
		fmt.Printf("  until: %s\n", c.EndAt.Format(time.RFC3339))
		return nil
	},
}

// events command
var eventsCmd = &cobra.Command{
	Use:   "events OWNER ID",
	Short: "View the journal of a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[1])
		if err != nil {
			return err
		}
		verify, _ := cmd.Flags().GetBool("verify")

		ctx := cmd.Context()
		a, err := newApp(ctx, "Events")
		if err != nil {
			return err
		}
		defer a.Close()

		evs, err := a.Events(ctx, model.AccountID(args[0]), id, verify)
		if err != nil {
			return err
		}

		if len(evs) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}
		for _, ev := range evs {
			fmt.Printf("#%-4d %-22s %s  %-12s %s\n",
				ev.Sequence,
				ev.Kind,
				ev.RecordedAt.Format("2006-01-02 15:04:05"),
				ev.Actor,
				ev.Hash[:19],
			)
		}
		if verify {
			fmt.Println("Journal verified.")
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Read archived events",
}

var archiveGetCmd = &cobra.Command{
	Use:   "get SINK OWNER ID SEQ",
	Short: "Fetch one event document from an archive sink",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resourceID(cmd, args[2])
		if err != nil {
			return err
		}
		seq, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sequence %q: %w", args[3], err)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "ArchiveGet")
		if err != nil {
			return err
		}
		defer a.Close()

		ev, err := a.FetchArchived(ctx, args[0], model.AccountID(args[1]), id, seq, promptPassphrase)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s by %s at %s\n", ev.Sequence, ev.Kind, ev.Actor, ev.RecordedAt.Format(time.RFC3339Nano))
		fmt.Printf("  prev: %s\n", ev.PrevHash)
		fmt.Printf("  hash: %s\n", ev.Hash)
		if len(ev.Payload) > 0 {
			fmt.Printf("  payload: %s\n", ev.Payload)
		}
		return nil
	},
}

// account command
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage treasury accounts",
}

var accountFundCmd = &cobra.Command{
	Use:   "fund ACCOUNT AMOUNT",
	Short: "Credit an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := model.ParseAmount(args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Fund")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Fund(ctx, model.AccountID(args[0]), amount); err != nil {
			return err
		}
		fmt.Printf("Funded %s with %s\n", args[0], amount)
		return nil
	},
}

var accountBalanceCmd = &cobra.Command{
	Use:   "balance ACCOUNT",
	Short: "Show an account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Balance")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.Balance(ctx, model.AccountID(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(b)
		return nil
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage caller tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue ACCOUNT",
	Short: "Sign a token for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "IssueToken")
		if err != nil {
			return err
		}
		defer a.Close()

		tok, err := a.IssueToken(model.AccountID(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		a, err := newApp(ctx, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(ctx, limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-10s  %-20s  %s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Caller,
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot DEST",
	Short: "Write a consistent copy of the ledger database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Snapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Snapshot(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("token", "", "caller token (default $"+app.EnvToken+")")
	rootCmd.PersistentFlags().Bool("hex", false, "resource IDs are hex encoded")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// resource subcommands
	resourceCmd.AddCommand(resourcePublishCmd)
	resourcePublishCmd.Flags().String("price", "0", "adoption price")
	resourcePublishCmd.Flags().Uint16("min-output", 0, "promised minimum output in kg")
	resourcePublishCmd.Flags().String("freeze", "", "end of the adoption window (RFC3339 or duration from now)")
	resourcePublishCmd.Flags().String("harvest", "", "harvest deadline (RFC3339 or duration from now)")
	resourcePublishCmd.Flags().String("info", "", "free-form description")
	resourcePublishCmd.MarkFlagRequired("freeze")
	resourcePublishCmd.MarkFlagRequired("harvest")
	resourceCmd.AddCommand(resourceRevokeCmd)
	resourceCmd.AddCommand(resourceStateCmd)
	resourceCmd.AddCommand(resourceShowCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveGetCmd)

	// account subcommands
	accountCmd.AddCommand(accountFundCmd)
	accountCmd.AddCommand(accountBalanceCmd)

	// token subcommands
	tokenCmd.AddCommand(tokenIssueCmd)

	// db subcommands
	dbCmd.AddCommand(dbSnapshotCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Bool("verify", false, "check the journal hash chain")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(dbCmd)
}
