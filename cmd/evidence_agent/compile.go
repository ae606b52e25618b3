package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/experience"
	"github.com/jonathan/resume-evidence/internal/types"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile career records into evidence chunks",
	Long:  "Validates a record bank and splits every record into atomic evidence chunks of roughly 80-150 tokens, printing them as JSON. Nothing is stored.",
	RunE:  runCompile,
}

var (
	compileRecords string
	compileOut     string
)

func init() {
	compileCmd.Flags().StringVarP(&compileRecords, "records", "r", "", "Path to the record bank JSON (required)")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Write chunks to this file instead of stdout")

	if err := compileCmd.MarkFlagRequired("records"); err != nil {
		panic(fmt.Sprintf("failed to mark records flag as required: %v", err))
	}

	rootCmd.AddCommand(compileCmd)
}

// compileOutput is the JSON document written by compile
type compileOutput struct {
	Records int                   `json:"records"`
	Chunks  []types.EvidenceChunk `json:"chunks"`
}

func runCompile(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	bank, err := experience.LoadRecords(compileRecords)
	if err != nil {
		return err
	}

	chunks := a.compiler().CompileAll(bank)
	if err := writeJSON(a.out, compileOut, compileOutput{Records: len(bank.Records), Chunks: chunks}); err != nil {
		return err
	}
	if compileOut != "" {
		_, _ = fmt.Fprintf(a.out, "Compiled %d records into %d chunks: %s\n", len(bank.Records), len(chunks), compileOut)
	}
	return nil
}
