package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cashplan/internal/csvimport"
	"cashplan/internal/services"
	gsheet "cashplan/internal/sheets/google"
	"cashplan/internal/worker"
)

func (a *app) importCmd() *cobra.Command {
	var actor, company, account, mappingJSON, mappingFile string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a CSV file into a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := loadMapping(mappingJSON, mappingFile)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			imports := services.NewImportService(repo, nil)
			imp, err := imports.Import(cmd.Context(), actor, company, services.ImportInput{
				FileName:  filepath.Base(args[0]),
				AccountID: account,
				Mapping:   mapping,
				File:      f,
			})
			if err != nil {
				return err
			}
			detail, err := imports.GetImport(cmd.Context(), actor, company, imp.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "import %s %s: %d valid, %d invalid of %d rows\n",
				imp.ID, imp.Status, imp.ValidRows, imp.InvalidRows, imp.TotalRows)
			for _, e := range detail.Errors {
				fmt.Fprintf(out, "  row %d %s: %s\n", e.Row, e.Field, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "member performing the import")
	cmd.Flags().StringVar(&company, "company", "", "company id")
	cmd.Flags().StringVar(&account, "account", "", "optional account id")
	cmd.Flags().StringVar(&mappingJSON, "mapping", "", "column mapping as JSON")
	cmd.Flags().StringVar(&mappingFile, "mapping-file", "", "file holding the column mapping JSON")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("company")
	cmd.MarkFlagsMutuallyExclusive("mapping", "mapping-file")
	cmd.MarkFlagsOneRequired("mapping", "mapping-file")
	return cmd
}

func loadMapping(inline, file string) (csvimport.Mapping, error) {
	raw := []byte(inline)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return csvimport.Mapping{}, fmt.Errorf("read mapping file: %w", err)
		}
		raw = b
	}
	var m csvimport.Mapping
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return csvimport.Mapping{}, fmt.Errorf("parse mapping: %w", err)
	}
	return m, nil
}

func (a *app) exportCmd() *cobra.Command {
	var actor, company, output string
	cmd := &cobra.Command{
		Use:   "export <scenario-id>",
		Short: "Write the Excel workbook of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			projections := services.NewProjectionService(repo, a.cfg.ProjectionCacheTTL)
			exports := services.NewExportService(repo, projections, a.cfg.ExportPageSize)

			var buf bytes.Buffer
			name, err := exports.Export(cmd.Context(), actor, company, args[0], &buf)
			if err != nil {
				return err
			}
			if output == "" {
				output = name
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "member performing the export")
	cmd.Flags().StringVar(&company, "company", "", "company id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: generated name)")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func (a *app) snapshotCmd() *cobra.Command {
	var actor, company string
	cmd := &cobra.Command{
		Use:   "snapshot <scenario-id>",
		Short: "Publish a scenario to the configured Google spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.SheetsEnabled() {
				return errors.New("GOOGLE_SPREADSHEET_ID is not configured")
			}
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if _, err := services.NewCompanyService(repo).RequireMember(cmd.Context(), company, actor); err != nil {
				return err
			}
			client, err := gsheet.New(cmd.Context(), gsheet.Config{
				SpreadsheetID:      a.cfg.GoogleSpreadsheetID,
				ServiceAccountJSON: a.cfg.GoogleServiceAccountJSON,
				ServiceAccountFile: a.cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}

			projections := services.NewProjectionService(repo, a.cfg.ProjectionCacheTTL)
			exports := services.NewExportService(repo, projections, a.cfg.ExportPageSize)
			ref, err := worker.NewEventWorker(repo, exports, client).Snapshot(cmd.Context(), company, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "member requesting the snapshot")
	cmd.Flags().StringVar(&company, "company", "", "company id")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
