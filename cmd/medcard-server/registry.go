package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/medcard/medcard/internal/config"
	"github.com/medcard/medcard/internal/domain/registry"
	"github.com/medcard/medcard/internal/domain/validation"
)

// buildRegistry resolves the configured sources into an unloaded Store.
// An S3 client is only created when a source lives in S3.
func buildRegistry(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*registry.Store, error) {
	var client registry.S3API
	if registry.IsS3Location(cfg.RegistryAuthorizedSource) || registry.IsS3Location(cfg.RegistryBlacklistSource) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	authorized, err := optionalSource(cfg.RegistryAuthorizedSource, client)
	if err != nil {
		return nil, fmt.Errorf("authorized registry: %w", err)
	}
	blacklisted, err := optionalSource(cfg.RegistryBlacklistSource, client)
	if err != nil {
		return nil, fmt.Errorf("blacklist registry: %w", err)
	}
	return registry.NewStore(nil, registry.NewLoader(authorized, blacklisted, logger)), nil
}

func optionalSource(location string, client registry.S3API) (registry.Source, error) {
	if strings.TrimSpace(location) == "" {
		return nil, nil
	}
	return registry.SourceFromLocation(location, client)
}

func logRegistryLoad(logger zerolog.Logger, rep registry.LoadReport) {
	ev := logger.Info()
	if rep.Degraded() {
		ev = logger.Warn()
	}
	ev.Int("authorized", rep.Authorized.Records).
		Int("blacklisted", rep.Blacklisted.Records).
		Int("skipped", rep.Authorized.Skipped+rep.Blacklisted.Skipped).
		Bool("degraded", rep.Degraded()).
		Msg("registry loaded")
}

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the doctor registries without starting the server",
	}
	cmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a registration number and council against the registries",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _ := cmd.Flags().GetString("reg")
			council, _ := cmd.Flags().GetString("council")
			if strings.TrimSpace(reg) == "" && strings.TrimSpace(council) == "" {
				return fmt.Errorf("--reg or --council is required")
			}

			store, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			res := validation.NewEngine(store).Validate(reg, council)
			return render(cmd, checkResult{
				Outcome:   res.Outcome,
				MatchedOn: res.MatchedOn,
				Record:    res.Record,
			})
		},
	}
	checkCmd.Flags().String("reg", "", "Registration number")
	checkCmd.Flags().String("council", "", "State medical council")
	cmd.AddCommand(checkCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print registry totals and the councils and qualifications present",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			rep, _ := store.LastReport()
			return render(cmd, statsResult{Stats: store.Current().Stats(), Load: rep})
		},
	}
	cmd.AddCommand(statsCmd)

	return cmd
}

type checkResult struct {
	Outcome   validation.Outcome           `json:"outcome" yaml:"outcome"`
	MatchedOn validation.MatchField        `json:"matched_on,omitempty" yaml:"matched_on,omitempty"`
	Record    *registry.PractitionerRecord `json:"practitioner,omitempty" yaml:"practitioner,omitempty"`
}

type statsResult struct {
	registry.Stats `yaml:",inline"`
	Load           registry.LoadReport `json:"load" yaml:"load"`
}

func loadRegistry(cmd *cobra.Command) (*registry.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	store, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if rep := store.Reload(ctx); rep.Degraded() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: registry load degraded (authorized: %q, blacklisted: %q)\n",
			rep.Authorized.Error, rep.Blacklisted.Error)
	}
	return store, nil
}

func render(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return write(cmd.OutOrStdout(), format, v)
}

func write(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
