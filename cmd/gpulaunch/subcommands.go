package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bryg-dev/gpulaunch/internal/catalog"
	"github.com/bryg-dev/gpulaunch/internal/config"
	"github.com/bryg-dev/gpulaunch/internal/history"
	"github.com/bryg-dev/gpulaunch/internal/lambda"
	"github.com/bryg-dev/gpulaunch/internal/launcher"
	"github.com/bryg-dev/gpulaunch/internal/prompt"
	"github.com/bryg-dev/gpulaunch/internal/sshkey"
)

// Load config honoring the --config and --endpoint flags
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if ep, _ := cmd.Flags().GetString("endpoint"); ep != "" {
		cfg.API.Endpoint = ep
	}
	return cfg, nil
}

// Resolve a client for non-interactive commands; the key must already be
// configured via config file, secrets.env or LAMBDA_API_KEY.
func resolveClient(cmd *cobra.Command) (*lambda.Client, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	if cfg.API.Key == "" {
		return nil, cfg, errors.New("no API key configured; set LAMBDA_API_KEY or api.key in the config file")
	}
	return lambda.NewClient(cfg.API.Key, cfg.API.Endpoint), cfg, nil
}

// Prompt for an API key until the account answers: a key is considered valid
// when /instance-types returns entries.
func promptForClient(ctx context.Context, p *prompt.Prompter, cfg config.Config) (*lambda.Client, error) {
	fmt.Println("Paste in your Lambda API key.")
	fmt.Println("If you do not have an API key you can generate one by clicking")
	fmt.Println("'Generate API key' under 'API keys' in your Lambda Cloud dashboard.")
	for {
		key, err := p.Line("API key: ")
		if err != nil {
			return nil, err
		}
		cli := lambda.NewClient(key, cfg.API.Endpoint)
		offers, err := cli.InstanceTypes(ctx)
		if err != nil || len(offers) == 0 {
			fmt.Println("API key is invalid or has no permissions.")
			continue
		}
		return cli, nil
	}
}

// Launch instances, retrying while capacity is exhausted
func newLaunchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch GPU instances, retrying until capacity is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())

			var cli *lambda.Client
			if cfg.API.Key != "" {
				cli = lambda.NewClient(cfg.API.Key, cfg.API.Endpoint)
			} else {
				cli, err = promptForClient(ctx, p, cfg)
				if err != nil {
					return err
				}
			}

			instanceType, _ := cmd.Flags().GetString("instance-type")
			interactive := instanceType == ""
			if instanceType == "" {
				fmt.Printf("\nAvailable instance types: %s\n\n", strings.Join(catalog.InstanceTypes(), ", "))
				instanceType, err = p.Until("Enter the desired instance type: ",
					prompt.OneOf("instance type", catalog.InstanceTypes()))
				if err != nil {
					return err
				}
			} else if !catalog.Known(instanceType) {
				return fmt.Errorf("unknown instance type %q; see 'gpulaunch types'", instanceType)
			}
			knownRegions, _ := catalog.RegionsFor(instanceType)

			region, _ := cmd.Flags().GetString("region")
			if !cmd.Flags().Changed("region") {
				if cfg.Launch.Region != "" {
					region = cfg.Launch.Region
				} else {
					fmt.Printf("\nAvailable regions for %s: %s\n", instanceType, strings.Join(knownRegions, ", "))
					fmt.Println("Leave empty to launch wherever capacity appears first.")
					region, err = p.Until("Region name: ", prompt.RegionIn(knownRegions))
					if err != nil {
						return err
					}
				}
			}

			keys, err := cli.SSHKeys(ctx)
			if err != nil {
				return fmt.Errorf("list ssh keys: %w", err)
			}
			keyNames := make([]string, 0, len(keys))
			for _, k := range keys {
				keyNames = append(keyNames, k.Name)
			}
			sshKey, _ := cmd.Flags().GetString("ssh-key")
			if sshKey == "" {
				sshKey = cfg.Launch.SSHKey
			}
			if sshKey == "" {
				fmt.Printf("\nAvailable SSH keys: %s\n", strings.Join(keyNames, ", "))
				sshKey, err = p.Until("Enter the SSH key name you would like to use: ",
					prompt.OneOf("SSH key name", keyNames))
				if err != nil {
					return err
				}
			} else if err := prompt.OneOf("SSH key name", keyNames)(sshKey); err != nil {
				return fmt.Errorf("ssh key %q is not registered with the account", sshKey)
			}

			fileSystem, _ := cmd.Flags().GetString("filesystem")
			if fileSystem == "" && interactive {
				attach, err := p.YesNo("Would you like to attach a file system? (y/n): ")
				if err != nil {
					return err
				}
				if attach {
					systems, err := cli.FileSystems(ctx)
					if err != nil {
						return fmt.Errorf("list file systems: %w", err)
					}
					fsNames := make([]string, 0, len(systems))
					for _, fs := range systems {
						fsNames = append(fsNames, fs.Name)
					}
					fmt.Printf("\nAvailable file systems: %s\n", strings.Join(fsNames, ", "))
					fileSystem, err = p.Until("Enter filesystem name you would like to use: ",
						prompt.OneOf("filesystem name", fsNames))
					if err != nil {
						return err
					}
				}
			}

			quantity, _ := cmd.Flags().GetInt("quantity")
			if quantity == 0 {
				quantity, err = p.Quantity("Enter the number of instances you would like to launch (1-9): ", 1, 9)
				if err != nil {
					return err
				}
			}

			interval := cfg.PollInterval()
			if s, _ := cmd.Flags().GetInt("interval"); s > 0 {
				interval = time.Duration(s) * time.Second
			}
			maxWait := cfg.MaxWait()
			if m, _ := cmd.Flags().GetInt("max-wait"); m > 0 {
				maxWait = time.Duration(m) * time.Minute
			}

			req := launcher.Request{
				Region:         region,
				InstanceType:   instanceType,
				SSHKeyName:     sshKey,
				FileSystemName: fileSystem,
				Quantity:       quantity,
			}
			l := &launcher.Launcher{
				API:      cli,
				Interval: interval,
				MaxWait:  maxWait,
				Log:      log.Logger,
			}

			ids, runErr := l.Run(ctx, req)
			recordOutcome(ctx, cmd, cfg, req, ids, runErr)
			if runErr != nil {
				return runErr
			}
			fmt.Println("Instance launched successfully!")
			fmt.Printf("Instance IDs: %s\n", strings.Join(ids, ", "))
			return nil
		},
	}
	cmd.Flags().String("instance-type", "", "instance type to launch (prompted when omitted)")
	cmd.Flags().String("region", "", "region to pin; empty lets the provider pick from available capacity")
	cmd.Flags().String("ssh-key", "", "registered SSH key name")
	cmd.Flags().String("filesystem", "", "file system to attach")
	cmd.Flags().Int("quantity", 0, "number of instances (1-9)")
	cmd.Flags().Int("interval", 0, "seconds between capacity polls")
	cmd.Flags().Int("max-wait", 0, "give up after this many minutes of capacity retries (0 = wait forever)")
	cmd.Flags().Bool("no-history", false, "do not record the outcome in the local launch history")
	return cmd
}

// Best-effort history recording; a broken local database never fails a launch.
func recordOutcome(ctx context.Context, cmd *cobra.Command, cfg config.Config, req launcher.Request, ids []string, runErr error) {
	if skip, _ := cmd.Flags().GetBool("no-history"); skip || cfg.History.Disabled {
		return
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Warn().Err(err).Msg("launch history unavailable")
		return
	}
	defer store.Close()
	rec := history.Record{
		LaunchedAt:   time.Now(),
		InstanceType: req.InstanceType,
		Region:       req.Region,
		Quantity:     req.Quantity,
		InstanceIDs:  ids,
	}
	if runErr != nil {
		var apiErr *lambda.APIError
		if errors.As(runErr, &apiErr) {
			rec.ErrorCode = apiErr.Code
			rec.ErrorMessage = apiErr.Message
		} else {
			rec.ErrorCode = "transport-failure"
			rec.ErrorMessage = runErr.Error()
		}
	}
	if err := store.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record launch history")
	}
}

// List instance types with live capacity
func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List instance types and the regions with capacity right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			offers, err := cli.InstanceTypes(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(offers))
			for name := range offers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				offer := offers[name]
				regions := make([]string, 0, len(offer.RegionsWithCapacityAvailable))
				for _, r := range offer.RegionsWithCapacityAvailable {
					regions = append(regions, r.Name)
				}
				capacity := strings.Join(regions, ",")
				if capacity == "" {
					capacity = "-"
				}
				fmt.Printf("%s\t$%.2f/hr\t%s\n", name, float64(offer.InstanceType.PriceCentsPerHour)/100, capacity)
			}
			return nil
		},
	}
}

// Show the known regions for an instance type from the embedded catalog
func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions <instance-type>",
		Short: "Show the known regions for an instance type (offline catalog)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			regions, ok := catalog.RegionsFor(args[0])
			if !ok {
				return fmt.Errorf("instance type not found: %s", args[0])
			}
			for _, r := range regions {
				fmt.Println(r)
			}
			return nil
		},
	}
}

// Manage account SSH keys
func newSSHKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh-keys",
		Short: "List or add account SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			keys, err := cli.SSHKeys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Printf("%s\t%s\n", k.Name, k.ID)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Register an SSH public key, generating a keypair if asked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			pubPath, _ := cmd.Flags().GetString("public-key")
			generate, _ := cmd.Flags().GetBool("generate")

			var publicKey string
			switch {
			case generate:
				keyFile, _ := cmd.Flags().GetString("key-file")
				if keyFile == "" {
					keyFile = filepath.Join(filepath.Dir(config.DefaultPath()), "ssh", "id_ed25519")
				}
				publicKey, err = sshkey.Generate(keyFile)
				if err != nil {
					return err
				}
				fmt.Printf("wrote new keypair to %s\n", keyFile)
			case pubPath != "":
				publicKey, err = sshkey.ReadPublicKey(pubPath)
				if err != nil {
					return err
				}
			default:
				return errors.New("provide --public-key or --generate")
			}

			key, err := cli.AddSSHKey(cmd.Context(), name, publicKey)
			if err != nil {
				return err
			}
			fmt.Printf("registered SSH key %s (%s)\n", key.Name, key.ID)
			return nil
		},
	}
	add.Flags().String("name", "", "name for the key")
	add.Flags().String("public-key", "", "path to an existing public key file")
	add.Flags().Bool("generate", false, "generate a new ed25519 keypair")
	add.Flags().String("key-file", "", "where to write the generated private key")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)
	return cmd
}

// List file systems
func newFileSystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-systems",
		Short: "List persistent file systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			systems, err := cli.FileSystems(cmd.Context())
			if err != nil {
				return err
			}
			for _, fs := range systems {
				inUse := ""
				if fs.InUse {
					inUse = "in-use"
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", fs.Name, fs.Region.Name, fs.MountPoint, inUse)
			}
			return nil
		},
	}
}

// List running instances
func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			instances, err := cli.Instances(cmd.Context())
			if err != nil {
				return err
			}
			for _, inst := range instances {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\n", inst.ID, inst.Name, inst.IP, inst.Status, inst.Region.Name)
			}
			return nil
		},
	}
}

// Terminate instances by ID
func newTerminateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminate <instance-id>...",
		Short: "Terminate instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
				ok, err := p.YesNo(fmt.Sprintf("Terminate %d instance(s)? (y/n): ", len(args)))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			terminated, err := cli.Terminate(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, inst := range terminated {
				fmt.Printf("terminated %s (%s)\n", inst.ID, inst.Status)
			}
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	return cmd
}

// Show recent launch history
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent launch outcomes recorded locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				outcome := strings.Join(r.InstanceIDs, ",")
				if r.ErrorCode != "" {
					outcome = "error: " + r.ErrorCode
				}
				fmt.Printf("%s\t%s\t%s\tx%d\t%s\n",
					r.LaunchedAt.Format(time.RFC3339), r.InstanceType, r.Region, r.Quantity, outcome)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum records to show")
	return cmd
}
