package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ecoroute/internal/planner"
	"ecoroute/internal/rag"
	"ecoroute/internal/server"
	"ecoroute/internal/session"
	"ecoroute/internal/tui"
)

func newTUICommand(c *cli) *cobra.Command {
	var naive bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive calculator and assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			t, err := c.emissionTable()
			if err != nil {
				return err
			}

			// the calculator works without the model
			var qa rag.Answerer
			answerer, release, err := c.answerer(ctx, naive)
			if err != nil {
				log.Warn().Err(err).Msg("Assistant unavailable, running calculator only")
			} else {
				defer release()
				qa = answerer
			}

			sess, err := session.NewManager(c.cfg.Session.MaxHistory).Start()
			if err != nil {
				return err
			}
			return tui.Run(tui.New(ctx, t, qa, sess, c.cfg.LLM.Timeout))
		},
	}
	cmd.Flags().BoolVar(&naive, "naive", false, "Use character-code similarity instead of the vector store")
	return cmd
}

func newServeCommand(c *cli) *cobra.Command {
	var addr string
	var naive bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			t, err := c.emissionTable()
			if err != nil {
				return err
			}
			llm, err := c.llm()
			if err != nil {
				return err
			}
			deps := server.Deps{
				Table:    t,
				Planner:  planner.New(t, llm),
				Sessions: session.NewManager(c.cfg.Session.MaxHistory),
			}
			qa, release, err := c.answerer(ctx, naive)
			if err != nil {
				log.Warn().Err(err).Msg("Question answering unavailable")
			} else {
				defer release()
				deps.QA = qa
			}

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			return server.New(deps).Run(ctx, addr, c.cfg.LLM.Timeout+serverWriteSlack)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, defaults to server.addr from the config")
	cmd.Flags().BoolVar(&naive, "naive", false, "Use character-code similarity instead of the vector store")
	return cmd
}

// serverWriteSlack is added to the model timeout for the HTTP write deadline.
const serverWriteSlack = 15 * time.Second
