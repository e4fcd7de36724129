package bootstrap

import (
	"fmt"
	"strings"

	"github.com/wolfman30/shinestar-cleaners/internal/chat"
	"github.com/wolfman30/shinestar-cleaners/internal/chatbot"
	appconfig "github.com/wolfman30/shinestar-cleaners/internal/config"
	"github.com/wolfman30/shinestar-cleaners/internal/observability/metrics"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// BuildScript loads CHAT_SCRIPT_PATH, or the built-in script when unset.
func BuildScript(cfg *appconfig.Config, logger *logging.Logger) (*chatbot.Script, error) {
	if cfg == nil || strings.TrimSpace(cfg.ChatScriptPath) == "" {
		return chatbot.DefaultScript(), nil
	}
	script, err := chatbot.LoadScript(cfg.ChatScriptPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: chat script: %w", err)
	}
	if logger != nil {
		logger.Info("chat script loaded", "path", cfg.ChatScriptPath, "name", script.Name, "steps", script.Len())
	}
	return script, nil
}

// BuildChatRegistry wires the session registry with delay, relay and metrics.
// chatMetrics may be nil.
func BuildChatRegistry(cfg *appconfig.Config, script *chatbot.Script, relays relay.Factory, chatMetrics *metrics.ChatMetrics, logger *logging.Logger) *chat.Registry {
	if logger == nil {
		logger = logging.Default()
	}
	engineOpts := []chatbot.Option{chatbot.WithLogger(logger)}
	regOpts := []chat.RegistryOption{}
	if cfg != nil {
		engineOpts = append(engineOpts, chatbot.WithDelay(cfg.ChatReplyDelay))
		regOpts = append(regOpts, chat.WithTTL(cfg.ChatSessionTTL))
	}
	if chatMetrics != nil {
		engineOpts = append(engineOpts, chatbot.WithRecorder(chatMetrics))
		regOpts = append(regOpts, chat.WithGauge(chatMetrics))
	}
	regOpts = append(regOpts, chat.WithEngineOptions(engineOpts...))
	return chat.NewRegistry(script, relays, regOpts...)
}
