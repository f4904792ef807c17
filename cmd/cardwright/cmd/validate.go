package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/core/config"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/rules"
	"github.com/solatis/cardwright/internal/types"
	"github.com/solatis/cardwright/internal/validate"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a stored rule, card or product card against a JSON payload",
	Long: `Validate expands the entity down to factors and evaluates it in process.
The payload is a JSON object keyed by parameter name, read from --payload
(a file path, or "-" for stdin). Exits non-zero when validation fails.`,
	RunE: runValidate,
}

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Print the factor-level expansion of a stored entity",
	RunE:  runExpand,
}

func init() {
	rootCmd.AddCommand(validateCmd, expandCmd)
	for _, c := range []*cobra.Command{validateCmd, expandCmd} {
		c.Flags().String("type", "", "entity type (rule, card, pcard)")
		c.Flags().Int64("id", 0, "entity id")
		c.MarkFlagRequired("type")
		c.MarkFlagRequired("id")
	}
	validateCmd.Flags().String("payload", "-", "JSON payload file, - for stdin")
}

// existsRequest reads --type and --id.
func existsRequest(cmd *cobra.Command) (validate.Request, error) {
	typeName, _ := cmd.Flags().GetString("type")
	id, _ := cmd.Flags().GetInt64("id")
	typ, err := validate.ParseType(typeName)
	if err != nil {
		return validate.Request{}, err
	}
	return validate.Request{Type: typ, Mode: validate.ModeExists, ID: id}, nil
}

// loadSnapshot opens the database and loads one catalog snapshot.
func loadSnapshot(ctx context.Context) (*catalog.Snapshot, *expr.Resolvers, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	database, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer database.Close()

	_, loader, err := openStore(database, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	resolvers, err := expr.NewResolvers(snap)
	if err != nil {
		return nil, nil, err
	}
	return snap, resolvers, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	req, err := existsRequest(cmd)
	if err != nil {
		return err
	}
	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}

	snap, resolvers, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}
	flat, err := validate.Flatten(snap, resolvers, req)
	if err != nil {
		return err
	}
	if req.Bindings, err = rules.BindingsFromPayload(flat.Parameters, payload); err != nil {
		return err
	}

	// The snapshot is already loaded, so the service needs no source.
	res, err := validate.NewService(nil, rules.NewEvaluator()).ValidateWith(ctx, snap, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if !res.Passed {
		return errValidationFailed
	}
	return nil
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	req, err := existsRequest(cmd)
	if err != nil {
		return err
	}
	snap, resolvers, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}
	flat, err := validate.Flatten(snap, resolvers, req)
	if err != nil {
		return err
	}

	stored, err := expr.Render(flat.Tokens, types.FormStored, resolvers.Factors)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(flat.Parameters))
	for _, p := range flat.Parameters {
		names = append(names, p.Name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "shown:      %s\n", flat.Shown)
	fmt.Fprintf(out, "stored:     %s\n", stored)
	fmt.Fprintf(out, "parameters: %s\n", strings.Join(names, ", "))
	return nil
}

func readPayload(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("payload")
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return b, nil
}
