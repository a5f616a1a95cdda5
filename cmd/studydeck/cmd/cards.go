package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/studydeck/apiclient"
)

const frontPreviewLen = 60

var cardsTopic string

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List study cards through the authenticated API",
	Long: `List study cards through the authenticated API using the session saved by
"studydeck server". The session database is locked while the server runs, so
these commands fail until it stops.`,
}

var cardsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List cards due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCards(cmd, (*apiclient.Client).GetDueCards)
	},
}

var cardsPracticeCmd = &cobra.Command{
	Use:   "practice",
	Short: "List the practice queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCards(cmd, (*apiclient.Client).GetPracticeCards)
	},
}

type cardLister func(*apiclient.Client, context.Context, string) ([]apiclient.StudyCard, error)

func listCards(cmd *cobra.Command, list cardLister) error {
	lc, err := openLocalClient(cmd.Context())
	if err != nil {
		return err
	}
	defer lc.Close()

	cards, err := list(lc.api, cmd.Context(), cardsTopic)
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return errors.New("not signed in or session expired; run `studydeck server --open` to log in")
	}
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cards.")
		return nil
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{
			c.Card.CardID,
			preview(c.Card.Front.Text),
			strings.Join(c.Card.Tags, ", "),
			c.SchedulingInfo.State,
			c.SchedulingInfo.Due,
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"Card", "Front", "Tags", "State", "Due"}, rows)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= frontPreviewLen {
		return s
	}
	return string(r[:frontPreviewLen-1]) + "…"
}

func init() {
	rootCmd.AddCommand(cardsCmd)
	cardsCmd.AddCommand(cardsDueCmd, cardsPracticeCmd)
	cardsCmd.PersistentFlags().StringVar(&cardsTopic, "topic", "", "Only list cards of this topic")
}
