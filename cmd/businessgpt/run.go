package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/puhovm04-code/BusinessGPT/history"
	"github.com/puhovm04-code/BusinessGPT/persona"
	"github.com/puhovm04-code/BusinessGPT/providers/textgen"
	"github.com/puhovm04-code/BusinessGPT/relay"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram relay bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or BUSINESSGPT_TELEGRAM_BOT_TOKEN)")
			}
			baseURL := strings.TrimRight(strings.TrimSpace(viper.GetString("telegram.base_url")), "/")
			if baseURL == "" {
				baseURL = "https://api.telegram.org"
			}

			endpointURL := strings.TrimSpace(flagOrViperString(cmd, "endpoint-url", "model.endpoint_url"))
			if endpointURL == "" {
				// Not fatal: the bot stays up and every generation turn is
				// skipped until the endpoint is configured.
				logger.Error("model.endpoint_url is not set; generation is disabled")
			}
			generateTimeout := flagOrViperDuration(cmd, "generate-timeout", "model.generate_timeout")

			threshold := flagOrViperFloat64(cmd, "threshold", "trigger.threshold")
			staleness := flagOrViperDuration(cmd, "staleness", "trigger.staleness")
			cooldown := flagOrViperDuration(cmd, "cooldown", "trigger.cooldown")
			pollTimeout := flagOrViperDuration(cmd, "poll-timeout", "telegram.poll_timeout")

			adminIDs, err := parseIDSet(flagOrViperStringArray(cmd, "admin-id", "trigger.admin_ids"))
			if err != nil {
				return fmt.Errorf("invalid trigger.admin_ids: %w", err)
			}
			allowedChats, err := parseIDSet(flagOrViperStringArray(cmd, "allowed-chat-id", "telegram.allowed_chat_ids"))
			if err != nil {
				return fmt.Errorf("invalid telegram.allowed_chat_ids: %w", err)
			}

			capacity := flagOrViperInt(cmd, "history-capacity", "history.capacity")
			textClamp := flagOrViperInt(cmd, "history-text-clamp", "history.text_clamp")

			personas, err := personasFromConfig(cmd)
			if err != nil {
				return err
			}

			api := newTelegramAPI(&http.Client{Timeout: pollTimeout + 30*time.Second}, baseURL, token)
			me, err := api.getMe(cmd.Context())
			if err != nil {
				return fmt.Errorf("telegram getMe: %w", err)
			}

			defaultPersona := strings.TrimSpace(flagOrViperString(cmd, "default-persona", "persona.default"))
			if defaultPersona == "" {
				defaultPersona = me.fullName()
			}

			store := history.NewStore(capacity, textClamp)
			messenger := &telegramMessenger{api: api}
			gateway := relay.NewGateway(relay.GatewayConfig{
				Store:           store,
				Client:          textgen.New(endpointURL, generateTimeout),
				Messenger:       messenger,
				Logger:          logger,
				DefaultPersona:  defaultPersona,
				GenerateTimeout: generateTimeout,
				Cooldown:        cooldown,
			})
			svc := relay.NewService(relay.ServiceConfig{
				Store:            store,
				Personas:         personas,
				Gateway:          gateway,
				Messenger:        messenger,
				Logger:           logger,
				BotID:            me.ID,
				BotHandle:        me.Username,
				DefaultThreshold: threshold,
				Staleness:        staleness,
				AdminIDs:         adminIDs,
				AllowedChats:     allowedChats,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("relay_start",
				"bot_username", me.Username,
				"bot_id", me.ID,
				"endpoint_url", endpointURL,
				"threshold", threshold,
				"staleness", staleness.String(),
				"cooldown", cooldown.String(),
				"history_capacity", capacity,
				"admin_ids", len(adminIDs),
				"allowed_chat_ids", len(allowedChats),
			)

			go gateway.Run(ctx)

			var offset int64
			for ctx.Err() == nil {
				updates, nextOffset, err := api.getUpdates(ctx, offset, pollTimeout)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					logger.Warn("telegram_get_updates_error", "error", err.Error())
					time.Sleep(time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					msg, ok := toRelayMessage(u.Message, me.ID, me.Username)
					if !ok {
						continue
					}
					svc.HandleMessage(ctx, msg)
				}
			}

			logger.Info("relay_stop")
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("endpoint-url", "", "Base URL of the text-generation endpoint.")
	cmd.Flags().Duration("generate-timeout", 60*time.Second, "Per-call timeout for the generation endpoint.")
	cmd.Flags().Float64("threshold", 0.2, "Random-trigger threshold in [0, 1].")
	cmd.Flags().Duration("staleness", 120*time.Second, "Ignore messages older than this.")
	cmd.Flags().Duration("cooldown", time.Second, "Pause between consecutive delivered turns.")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().StringArray("admin-id", nil, "User id(s) allowed to use /threshold and /reset.")
	cmd.Flags().StringArray("allowed-chat-id", nil, "Chat id(s) allowed to trigger generation. If empty, allows all.")
	cmd.Flags().Int("history-capacity", history.DefaultCapacity, "Transcript lines kept per conversation.")
	cmd.Flags().Int("history-text-clamp", history.DefaultTextClamp, "Max characters stored per transcript line.")
	cmd.Flags().String("persona-file", "", "YAML file mapping user ids to display labels.")
	cmd.Flags().String("default-persona", "", "Speaker label for untagged generated replies (default: the bot's name).")

	return cmd
}

func personasFromConfig(cmd *cobra.Command) (*persona.Resolver, error) {
	if path := strings.TrimSpace(flagOrViperString(cmd, "persona-file", "persona.file")); path != "" {
		r, err := persona.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load persona.file: %w", err)
		}
		return r, nil
	}
	r, err := persona.FromStrings(viper.GetStringMapString("persona.names"))
	if err != nil {
		return nil, fmt.Errorf("invalid persona.names: %w", err)
	}
	return r, nil
}

func parseIDSet(raw []string) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		out[id] = true
	}
	return out, nil
}
