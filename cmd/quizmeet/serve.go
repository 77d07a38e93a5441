package main

import (
	"net/http"
	"os"

	"github.com/koustreak/quizmeet/internal/bootstrap"
	"github.com/koustreak/quizmeet/internal/config"
	"github.com/koustreak/quizmeet/internal/metrics"
	"github.com/koustreak/quizmeet/internal/outcome"
	"github.com/koustreak/quizmeet/internal/server"
	"github.com/koustreak/quizmeet/internal/tournament"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func ServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tournament API",
		Long: "Serve the tournament API from an already migrated database. The connection\n" +
			"URL is read from the environment variable named by database.url_var.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := cfg.Logger(os.Stdout)

			pool, err := bootstrap.Open(cfg.Database.URLVar, cfg.PoolMode(), bootstrap.WithLogger(log))
			if err != nil {
				log.ErrorWith("cannot open database pool", err, nil)
				return err
			}
			defer pool.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics.NewPoolCollector(reg, pool)
			outcomes := metrics.NewOutcomeMetrics(reg)

			store := tournament.NewStore(pool, bootstrap.DialectFor(pool.Config()))
			svc := tournament.NewService(store, outcome.NewTranslator(log, outcomes))

			router := server.NewRouter(server.Deps{
				Log:         log,
				Pool:        pool,
				Gatherer:    reg,
				HTTPMetrics: metrics.NewHTTPMetrics(reg),
				Mounts: map[string]http.Handler{
					"/api/tournaments": tournament.NewHandler(svc).Routes(),
				},
			})

			srv := server.New(cfg.HTTP.Addr, cfg.HTTP.ReadTimeout, cfg.HTTP.ShutdownTimeout, log)
			return srv.Run(cmd.Context(), router)
		},
	}
}
