package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindscroll/cardgen/internal/ingest"
	"github.com/mindscroll/cardgen/internal/model"
)

var (
	importContentID string
	importTitle     string
	importAuthor    string
	importCategory  string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a chunked document into the store",
	Long:  "Imports book metadata and chunks from a JSON document file, or from an XLSX sheet (one chunk per row) with metadata supplied via flags.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		var doc *ingest.Document
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			if importContentID == "" || importTitle == "" {
				return eris.New("xlsx import requires --content and --title")
			}
			doc, err = ingest.ReadXLSX(path, model.BookMeta{
				ContentID: importContentID,
				Title:     importTitle,
				Author:    importAuthor,
				Category:  importCategory,
			})
		default:
			doc, err = ingest.ReadJSON(path)
		}
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.PutDocument(ctx, doc.Meta, doc.Chunks); err != nil {
			return eris.Wrap(err, "import document")
		}

		zap.L().Info("document imported",
			zap.String("content_id", doc.Meta.ContentID),
			zap.String("title", doc.Meta.Title),
			zap.Int("chunks", len(doc.Chunks)),
		)
		fmt.Printf("Imported %q: %d chunks (content ID %s)\n", doc.Meta.Title, len(doc.Chunks), doc.Meta.ContentID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importContentID, "content", "", "content ID (required for xlsx)")
	importCmd.Flags().StringVar(&importTitle, "title", "", "book title (required for xlsx)")
	importCmd.Flags().StringVar(&importAuthor, "author", "", "book author")
	importCmd.Flags().StringVar(&importCategory, "category", "", "book category")
	rootCmd.AddCommand(importCmd)
}
