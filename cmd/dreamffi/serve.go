package main

import (
	"github.com/spf13/cobra"

	"github.com/dusk-indust/dreamffi/internal/config"
	"github.com/dusk-indust/dreamffi/internal/mcptools"
)

func newServeMCPCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the parse session tools over MCP (stdio, or streamable HTTP with --http)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig("")
			if err != nil {
				return err
			}
			log, err := flags.logger(cmd, cfg)
			if err != nil {
				return err
			}

			svc := mcptools.NewSessionService(config.Opener{Log: &log}, log)
			defer svc.Close()
			server := mcptools.NewMCPServer(svc)

			if addr != "" {
				log.Info().Str("addr", addr).Msg("serving MCP over HTTP")
				return mcptools.RunHTTP(cmd.Context(), server, addr)
			}
			log.Info().Msg("serving MCP over stdio")
			return mcptools.RunStdio(cmd.Context(), server)
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "Listen address for streamable HTTP, e.g. localhost:8080")
	return cmd
}
