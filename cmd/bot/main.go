package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	ossignal "os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/pasiyamd/forexbot/internal/config"
	"github.com/pasiyamd/forexbot/internal/control"
	"github.com/pasiyamd/forexbot/internal/notify"
	"github.com/pasiyamd/forexbot/internal/observ"
	"github.com/pasiyamd/forexbot/internal/risk"
	"github.com/pasiyamd/forexbot/internal/session"
	"github.com/pasiyamd/forexbot/internal/signal"
	"github.com/pasiyamd/forexbot/internal/venue"
	"github.com/pasiyamd/forexbot/internal/venue/binance"
)

func main() {
	var cfgPath string
	var autoStart string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.StringVar(&autoStart, "auto-start", "", "start trading immediately in this mode (safe|unlimited)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v (did you copy config.example.yaml?)", err)
	}
	if err := observ.Setup(cfg.LogLevel, cfg.LogPretty); err != nil {
		log.Fatalf("setup logging: %v", err)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbols := make([]string, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		symbols[i] = s.Symbol
	}

	observ.Log("startup", map[string]any{
		"mode":          cfg.Mode,
		"symbols":       symbols,
		"fast_window":   cfg.FastWindow,
		"slow_window":   cfg.SlowWindow,
		"poll_interval": cfg.PollInterval().String(),
		"testnet":       cfg.Venue.Testnet,
	})

	var v venue.Venue
	switch cfg.Mode {
	case "live":
		stream := binance.NewKlineStream(symbols, cfg.Venue.Interval, cfg.Venue.Testnet)
		go stream.Run(ctx)
		v = binance.New(cfg.Venue.APIKey, cfg.Venue.APISecret, cfg.Venue.Testnet, cfg.Venue.Interval, stream)
	default:
		v = venue.NewPaper(symbols, decimal.NewFromFloat(cfg.StartBalance))
	}

	var bot *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("telegram connect: %v", err)
		}
	}

	var sink notify.Sink = notify.LogSink{}
	var telegramSink *notify.TelegramSink
	if bot != nil && len(cfg.Telegram.AdminIDs) > 0 {
		telegramSink = notify.NewTelegramSink(bot, cfg.Telegram.AdminIDs[0])
		sink = telegramSink
	}

	sess := session.New(session.Config{
		Symbols:      cfg.Symbols,
		Engine:       signal.Engine{Fast: cfg.FastWindow, Slow: cfg.SlowWindow},
		RiskPercent:  decimal.NewFromFloat(cfg.RiskPercent),
		MinLot:       decimal.NewFromFloat(cfg.MinLot),
		DailyTarget:  decimal.NewFromFloat(cfg.DailyProfitTarget),
		PollInterval: cfg.PollInterval(),
		ErrorBackoff: cfg.ErrorBackoff(),
		Deviation:    cfg.OrderDeviation,
	}, v, risk.NewTable(cfg.Instruments), sink)

	if bot != nil {
		if err := control.RegisterCommands(bot); err != nil {
			observ.Warn("register_commands_failed", map[string]any{"error": err.Error()})
		}
		listener := control.NewListener(bot, control.NewSurface(cfg.Telegram.AdminIDs, sess))
		go listener.Run(ctx)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				observ.Error("metrics_server_failed", err, nil)
			}
		}()
	}

	if autoStart != "" {
		mode, err := session.ParseMode(autoStart)
		if err != nil {
			log.Fatalf("auto-start: %v", err)
		}
		if err := sess.Start(ctx, mode); err != nil {
			log.Fatalf("auto-start: %v", err)
		}
	} else if bot == nil {
		// no operator channel to start us, so trade right away
		if err := sess.Start(ctx, session.ModeSafe); err != nil {
			log.Fatalf("start: %v", err)
		}
	}

	<-ctx.Done()
	observ.Log("shutdown", nil)

	if sess.Status(context.Background()).Running {
		sess.Stop()
	}
	if telegramSink != nil {
		telegramSink.Close()
	}
}
