package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/clinvar-query/internal/parser"
	"github.com/clinvar-query/internal/service"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		patientID   string
		overwrite   bool
		withRecords bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Parse, annotate and store one patient CSV or VCF file",
		Example: `  clinvar-query ingest data/P001_panel.vcf
  clinvar-query ingest --patient P001 --overwrite data/run42.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Pipeline.Ingest(cmd.Context(), service.IngestRequest{
				FilePath:  args[0],
				PatientID: patientID,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			if !withRecords {
				report.Records = nil
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&patientID, "patient", "p", "", "patient id (default: file name before the first underscore)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "re-process a file that was already ingested")
	cmd.Flags().BoolVar(&withRecords, "records", false, "include per-variant records in the report")
	return cmd
}

func newAnnotateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate [variant...]",
		Short: "Annotate chrom-pos-ref-alt variants without storing them",
		Long:  "Annotate the variants given as arguments, or one per line on stdin when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			variants := args
			if len(variants) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					if line := strings.TrimSpace(sc.Text()); line != "" {
						variants = append(variants, line)
					}
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return writeJSON(cmd.OutOrStdout(), a.Pipeline.Annotate(cmd.Context(), variants))
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Normalize a CSV or VCF file and print variants and misaligned rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := parser.ParseFile(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}
