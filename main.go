package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ricmunrom/botAtencionClientes/agent/business"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/knowledge"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	statex "github.com/ricmunrom/botAtencionClientes/agent/state"
	"github.com/ricmunrom/botAtencionClientes/api"
	configx "github.com/ricmunrom/botAtencionClientes/pkg/config"
	_ "github.com/ricmunrom/botAtencionClientes/pkg/logger/autoload"
	postgresx "github.com/ricmunrom/botAtencionClientes/pkg/postgres"
)

type AppConfig struct {
	CatalogPath  string `envconfig:"CATALOG_PATH" default:"catalogo.csv"`
	FinanceTerms []int  `envconfig:"FINANCE_TERMS"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")
	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	apiCfg := configx.MustNew[api.Config]("API")
	sweepCfg := configx.MustNew[statex.SweeperConfig]("SWEEP")
	searchCfg := configx.MustNew[business.Config]("SEARCH")

	cat := mustLoadCatalog(ctx, appCfg.CatalogPath, *pgCfg)

	var financeOpts []finance.Option
	if len(appCfg.FinanceTerms) > 0 {
		financeOpts = append(financeOpts, finance.WithTerms(appCfg.FinanceTerms...))
	}

	store := statex.NewStore()
	svc, err := business.New(search.New(cat), finance.New(financeOpts...), store, knowledge.MustLoad(), *searchCfg)
	if err != nil {
		panic(err)
	}

	sweeper, err := statex.NewSweeper(store, *sweepCfg)
	if err != nil {
		panic(err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if err := api.Start(ctx, api.StartOpts{
		Config:      *apiCfg,
		Business:    svc,
		SweepMaxAge: sweepCfg.MaxAge,
	}); err != nil {
		log.Error().Err(err).Msg("api stopped")
	}
}

// mustLoadCatalog prefers the Postgres inventory table when a DSN is set and
// falls back to the CSV file. A catalog that cannot be loaded is fatal.
func mustLoadCatalog(ctx context.Context, path string, pgCfg postgresx.Config) *catalog.Catalog {
	if pgCfg.Enabled() {
		db, err := postgresx.New(ctx, pgCfg)
		if err != nil {
			panic(err)
		}
		defer db.Close()

		cat, err := catalog.LoadPostgres(ctx, db)
		if err != nil {
			panic(err)
		}
		return cat
	}

	cat, err := catalog.LoadFile(path)
	if err != nil {
		panic(err)
	}
	return cat
}
