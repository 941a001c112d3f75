package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vfg2006/traffic-diagnostics-api/internal/config"
	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/authenticating"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "diagnose",
		Short:        "Executa o motor de diagnóstico fora da API",
		SilenceUsage: true,
	}
	root.AddCommand(runCommand(), thresholdsCommand(), tokenCommand())
	return root
}

type runOptions struct {
	snapshotsFile string
	startDate     string
	endDate       string
	entityIDs     []string
	categories    []string
	thresholds    []string
	workers       int
	logLevel      string
}

func runCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Diagnostica snapshots lidos de um arquivo JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)

			report, err := runOffline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), utils.PrettyJson(map[string]any{
				"run_id":     report.RunID,
				"range":      report.Range,
				"categories": report.Categories,
				"evidence":   report.Records(),
				"warnings":   report.Warnings,
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.snapshotsFile, "snapshots", "f", "", "arquivo JSON com a lista de snapshots")
	cmd.Flags().StringVar(&opts.startDate, "start", "", "data inicial (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.endDate, "end", "", "data final (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.entityIDs, "entity", nil, "entidades a diagnosticar (padrão: todas do arquivo)")
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "categorias a executar (padrão: todas)")
	cmd.Flags().StringArrayVar(&opts.thresholds, "threshold", nil, "sobrescrita no formato nome=valor")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "workers do motor (padrão: GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warning", "nível de log")
	_ = cmd.MarkFlagRequired("snapshots")

	return cmd
}

func runOffline(ctx context.Context, opts *runOptions) (*diagnosing.Report, error) {
	content, err := os.ReadFile(opts.snapshotsFile)
	if err != nil {
		return nil, err
	}
	var snapshots []domain.Snapshot
	if err := json.Unmarshal(content, &snapshots); err != nil {
		return nil, fmt.Errorf("erro ao interpretar %s: %w", opts.snapshotsFile, err)
	}

	dateRange, err := resolveRange(opts.startDate, opts.endDate, snapshots)
	if err != nil {
		return nil, err
	}

	overrides, err := parseOverrides(opts.thresholds)
	if err != nil {
		return nil, err
	}
	thresholds, err := diagnosing.DefaultThresholds().WithOverrides(overrides)
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(opts.categories))
	for _, c := range opts.categories {
		category, err := domain.ParseCategory(c)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	return diagnosing.NewEngine(opts.workers).Run(ctx, diagnosing.RunInput{
		Snapshots:  snapshots,
		EntityIDs:  opts.entityIDs,
		Range:      dateRange,
		Categories: categories,
	}, thresholds)
}

// resolveRange usa as datas informadas ou, na falta delas, o intervalo coberto pelo arquivo
func resolveRange(start, end string, snapshots []domain.Snapshot) (domain.DateRange, error) {
	var first, last time.Time
	for _, s := range snapshots {
		d := domain.NormalizeDate(s.Date)
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	if start != "" {
		parsed, err := utils.ParseDate(start)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("start inválido: %w", err)
		}
		first = *parsed
	}
	if end != "" {
		parsed, err := utils.ParseDate(end)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("end inválido: %w", err)
		}
		last = *parsed
	}

	return domain.NewDateRange(first, last)
}

func parseOverrides(pairs []string) (map[string]float64, error) {
	overrides := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("threshold %q deve estar no formato nome=valor", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("valor inválido para %s: %w", name, err)
		}
		overrides[strings.TrimSpace(name)] = v
	}
	return overrides, nil
}

func thresholdsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Lista os thresholds padrão",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := diagnosing.DefaultThresholds().Map()
			names := make([]string, 0, len(defaults))
			for name := range defaults {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %v\n", name, defaults[name])
			}
			return nil
		},
	}
}

func tokenCommand() *cobra.Command {
	var (
		userID   int
		email    string
		roleID   int
		accounts []string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite um token de acesso assinado com SECRET_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			validator, err := authenticating.NewService(cfg)
			if err != nil {
				return err
			}

			claims := domain.Claims{
				UserID:       userID,
				UserEmail:    email,
				UserRoleID:   roleID,
				UserAccounts: accounts,
			}
			if ttl > 0 {
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
			}

			token, err := validator.IssueToken(claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user-id", 0, "id do usuário")
	cmd.Flags().StringVar(&email, "email", "", "email do usuário")
	cmd.Flags().IntVar(&roleID, "role", 3, "perfil (1=admin, 2=supervisor, 3=cliente)")
	cmd.Flags().StringSliceVar(&accounts, "account", nil, "contas vinculadas")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "validade do token (padrão: 24h)")

	return cmd
}
