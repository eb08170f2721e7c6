package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the knowledge base documents",
}

var docsAddCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Index one or more text files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsAdd,
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE:  runDocsList,
}

var docsRemoveCmd = &cobra.Command{
	Use:     "rm <doc-id>...",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove documents from every index",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDocsRemove,
}

func init() {
	docsCmd.AddCommand(docsAddCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsRemoveCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		docID, err := a.rag.AddDocument(ctx, path, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Printf("Indexed %s as %s\n", path, docID)
	}
	return nil
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.rag.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%s  %s (%d bytes)\n", d.DocID, d.FileName, d.FileSize)
	}
	return nil
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var incomplete bool
	for _, docID := range args {
		if a.rag.DeleteDocument(ctx, docID) {
			fmt.Printf("Removed %s\n", docID)
		} else {
			incomplete = true
			fmt.Printf("Removal of %s incomplete, see logs\n", docID)
		}
	}
	if incomplete {
		return fmt.Errorf("some documents were not fully removed")
	}
	return nil
}
