package main

import (
	"github.com/spf13/cobra"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and websocket invalidation events",
		Args:  args(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.New(engine, log).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	return cmd
}
