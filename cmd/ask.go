package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ecoroute/internal/chromemdb"
	"ecoroute/internal/rag"
	"ecoroute/internal/session"
)

func newAskCommand(c *cli) *cobra.Command {
	var naive, showContext bool
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Answer a question from the knowledge files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qa, release, err := c.answerer(cmd.Context(), naive)
			if err != nil {
				return err
			}
			defer release()

			resp, err := qa.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showContext {
				fmt.Fprintln(out, headingStyle.Render("Context"))
				fmt.Fprintf(out, "%s\n\n", resp.Source)
				fmt.Fprintln(out, headingStyle.Render("Assistant"))
			}
			fmt.Fprintln(out, resp.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&naive, "naive", false, "Use character-code similarity instead of the vector store")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved context")
	return cmd
}

func newIngestCommand(c *cli) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and store the knowledge files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			corpus, err := c.corpus()
			if err != nil {
				return err
			}
			store, release, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer release()

			if reset {
				if err := resetStore(ctx, store); err != nil {
					return fmt.Errorf("error resetting store: %w", err)
				}
			}
			splitter, err := c.splitter()
			if err != nil {
				return err
			}

			n, err := rag.NewVectorQA(store, nil, splitter, c.cfg.RAG.TopK).Ingest(ctx, corpus)
			if err != nil {
				return fmt.Errorf("error ingesting knowledge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d chunks from %d documents\n", n, len(corpus.Documents))

			if manager, ok := store.(*chromemdb.VectorDBManager); ok && c.cfg.RAG.EncryptionKey != "" {
				path, err := manager.Export()
				if err != nil {
					return fmt.Errorf("error exporting collection: %w", err)
				}
				log.Info().Str("file", path).Msg("Exported collection")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop the stored chunks first")
	return cmd
}

// newChatCommand runs a read-answer loop over stdin with one session.
func newChatCommand(c *cli) *cobra.Command {
	var naive bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively; type history to review, exit or quit to leave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			qa, release, err := c.answerer(ctx, naive)
			if err != nil {
				return err
			}
			defer release()

			sessions := session.NewManager(c.cfg.Session.MaxHistory)
			sess, err := sessions.Start()
			if err != nil {
				return err
			}
			defer func() { _ = sessions.End(sess.ID) }()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render("EcoRoute assistant")+" (type history to review, exit or quit to leave)")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(question) {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "history":
					printHistory(out, sess.History())
					continue
				}

				resp, err := qa.Ask(ctx, question)
				turn := session.Turn{Question: question, Answer: resp.Content, Context: resp.Source}
				if err != nil {
					turn.Err = err.Error()
					sess.Append(turn)
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
					continue
				}
				sess.Append(turn)
				fmt.Fprintln(out, resp.Content)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().BoolVar(&naive, "naive", false, "Use character-code similarity instead of the vector store")
	return cmd
}

func printHistory(out io.Writer, turns []session.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "No questions yet")
		return
	}
	for i, t := range turns {
		fmt.Fprintf(out, "%d. %s\n", i+1, t.Question)
		if t.Err != "" {
			fmt.Fprintln(out, errorStyle.Render("   Error: "+t.Err))
			continue
		}
		fmt.Fprintf(out, "   %s\n", t.Answer)
	}
}
