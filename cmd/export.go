package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/mindscroll/cardgen/internal/model"
)

var (
	exportContent string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a cached deck to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		deck, err := st.GetDeck(ctx, exportContent)
		if err != nil {
			return eris.Wrap(err, "load deck")
		}
		if deck == nil {
			return eris.Errorf("no cached deck for content %s (run generate first)", exportContent)
		}

		out := exportOut
		if out == "" {
			out = exportContent + ".xlsx"
		}
		if err := writeDeckXLSX(deck, out); err != nil {
			return err
		}

		fmt.Printf("Exported %d cards to %s\n", deck.CardCount, out)
		return nil
	},
}

// writeDeckXLSX writes one sheet per card type plus a chapter index.
func writeDeckXLSX(deck *model.Deck, path string) error {
	f := xlsx.NewFile()

	byType := map[model.CardType][]model.Card{}
	for _, c := range deck.Cards {
		byType[c.Type] = append(byType[c.Type], c)
	}

	order := []model.CardType{
		model.CardTypeFlashcard,
		model.CardTypeApplication,
		model.CardTypeQuiz,
		model.CardTypeSynthesis,
	}
	for _, t := range order {
		cards := byType[t]
		if len(cards) == 0 {
			continue
		}
		sheet, err := f.AddSheet(string(t))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", t)
		}
		writeCardRows(sheet, t, cards)
	}

	if len(deck.Chapters) > 0 {
		sheet, err := f.AddSheet("chapters")
		if err != nil {
			return eris.Wrap(err, "export: add chapter sheet")
		}
		header := sheet.AddRow()
		for _, h := range []string{"Chapter", "Chunks", "Cards"} {
			header.AddCell().Value = h
		}
		for _, ch := range deck.Chapters {
			row := sheet.AddRow()
			row.AddCell().Value = ch.Label
			row.AddCell().Value = strconv.Itoa(len(ch.ChunkIDs))
			row.AddCell().Value = strconv.Itoa(len(ch.CardIDs))
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func writeCardRows(sheet *xlsx.Sheet, t model.CardType, cards []model.Card) {
	header := sheet.AddRow()
	for _, h := range cardHeader(t) {
		header.AddCell().Value = h
	}
	for _, c := range cards {
		// Decks edited or imported outside this pipeline can carry cards
		// whose payload pointer for their declared type is missing.
		if payloadFor(c) == nil {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().Value = c.Title
		switch t {
		case model.CardTypeFlashcard, model.CardTypeSynthesis:
			row.AddCell().Value = c.Flashcard.Front
			row.AddCell().Value = c.Flashcard.Back
		case model.CardTypeApplication:
			row.AddCell().Value = c.Application.Scenario
		case model.CardTypeQuiz:
			row.AddCell().Value = c.Quiz.Question
			row.AddCell().Value = strings.Join(c.Quiz.Choices, " | ")
			row.AddCell().Value = strconv.Itoa(c.Quiz.CorrectIndex)
			row.AddCell().Value = c.Quiz.Explanation
		}
		row.AddCell().Value = c.ChapterContext
		row.AddCell().Value = c.Difficulty
	}
}

// payloadFor returns the payload pointer matching the card's declared type,
// or nil when it is absent.
func payloadFor(c model.Card) any {
	switch c.Type {
	case model.CardTypeFlashcard, model.CardTypeSynthesis:
		if c.Flashcard != nil {
			return c.Flashcard
		}
	case model.CardTypeApplication:
		if c.Application != nil {
			return c.Application
		}
	case model.CardTypeQuiz:
		if c.Quiz != nil {
			return c.Quiz
		}
	}
	return nil
}

func cardHeader(t model.CardType) []string {
	switch t {
	case model.CardTypeQuiz:
		return []string{"Title", "Question", "Choices", "Correct", "Explanation", "Chapter", "Difficulty"}
	case model.CardTypeApplication:
		return []string{"Title", "Scenario", "Chapter", "Difficulty"}
	default:
		return []string{"Title", "Front", "Back", "Chapter", "Difficulty"}
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportContent, "content", "", "content ID of the cached deck (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <content>.xlsx)")
	_ = exportCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(exportCmd)
}
