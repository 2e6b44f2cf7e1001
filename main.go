package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	accountx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/account"
	dedupex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/dedupe"
	enquiryx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/enquiry"
	genaix "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/genai"
	orchestratorx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/orchestrator"
	statex "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/state"
	threadsx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/threads"
	toolx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/tool"
	webhookx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/webhook"
	configx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/config"
	evolutionx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/evolution"
	_ "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/qstash"
)

type AppConfig struct {
	MaxSteps        int           `envconfig:"MAX_STEPS" split_words:"true" default:"6"`
	DedupeTTL       time.Duration `envconfig:"DEDUPE_TTL" split_words:"true" default:"10m"`
	DedupeMaxSize   int           `envconfig:"DEDUPE_MAX_SIZE" split_words:"true" default:"4096"`
	StaffWebhookURL string        `envconfig:"STAFF_WEBHOOK_URL" split_words:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("APP")

	pgCfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
	db, err := statex.Connect(*pgCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer db.Close()

	store, err := statex.NewPostgresStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres store init failed")
	}

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	if openrouterx.NewClient(*openRouterCfg) == nil {
		log.Fatal().Msg("openrouter credentials missing")
	}
	chatModel, err := openRouterCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("chat model init failed")
	}

	provider, err := genaix.NewProvider(chatModel, store, genaix.Config{MaxSteps: appCfg.MaxSteps})
	if err != nil {
		log.Fatal().Err(err).Msg("generation provider init failed")
	}

	evolutionCfg := configx.MustNew[evolutionx.Config]("EVOLUTION")
	channel := evolutionx.MustNew(*evolutionCfg)

	registry, err := threadsx.NewRegistry(store, provider)
	if err != nil {
		log.Fatal().Err(err).Msg("thread registry init failed")
	}

	ledger, err := enquiryx.NewLedger(store, store)
	if err != nil {
		log.Fatal().Err(err).Msg("enquiry ledger init failed")
	}
	if appCfg.StaffWebhookURL != "" {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		notifier, err := enquiryx.NewQueueNotifier(qstashx.MustNew(*qstashCfg), appCfg.StaffWebhookURL)
		if err != nil {
			log.Fatal().Err(err).Msg("staff notifier init failed")
		}
		ledger.SetNotifier(notifier)
	}

	execute, err := toolx.NewExecutor(toolx.Deps{
		Restaurants: store,
		Dispatcher:  channel,
		Ledger:      ledger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tool executor init failed")
	}

	orchestrator, err := orchestratorx.New(
		store,
		registry,
		provider,
		channel,
		store,
		toolx.Infos(),
		execute,
		orchestratorx.Config{MaxSteps: appCfg.MaxSteps},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}
	ledger.SetResumer(orchestrator)

	accounts, err := accountx.New(store, channel)
	if err != nil {
		log.Fatal().Err(err).Msg("account manager init failed")
	}

	webhookCfg := configx.MustNew[webhookx.Config]("WEBHOOK")
	server, err := webhookx.NewServer(
		*webhookCfg,
		orchestrator,
		accounts,
		ledger,
		dedupex.New(appCfg.DedupeTTL, appCfg.DedupeMaxSize),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("webhook server init failed")
	}

	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("webhook server stopped")
	}
}
