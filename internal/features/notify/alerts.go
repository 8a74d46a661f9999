package notify

import (
	"fmt"
	"html"
	"sync"

	"github.com/yangirov/stock-background/internal/infra/log"

	"go.uber.org/zap"
)

// Sender delivers one alert message.
type Sender interface {
	Send(text string) error
}

// AlertGate sends a message only when the cycle outcome flips: the first
// failure after a success (or after start) and the first success after a
// failure. A nil gate or a gate without a sender does nothing.
type AlertGate struct {
	sender Sender
	label  string

	mu      sync.Mutex
	failing bool
}

func NewAlertGate(sender Sender, label string) *AlertGate {
	return &AlertGate{sender: sender, label: label}
}

// Observe records one cycle outcome. Send errors are logged, never returned.
func (g *AlertGate) Observe(err error) {
	if g == nil || g.sender == nil {
		return
	}

	g.mu.Lock()
	var text string
	switch {
	case err != nil && !g.failing:
		g.failing = true
		text = FormatFailure(g.label, err)
	case err == nil && g.failing:
		g.failing = false
		text = FormatRecovery(g.label)
	}
	g.mu.Unlock()

	if text == "" {
		return
	}
	if sendErr := g.sender.Send(text); sendErr != nil {
		log.LogWarn("Failed to send alert", zap.String("label", g.label), zap.Error(sendErr))
		return
	}
	log.LogInfo("Alert sent", zap.String("label", g.label), zap.Bool("failing", err != nil))
}

// Failing reports whether the last observed cycle failed.
func (g *AlertGate) Failing() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failing
}

func FormatFailure(label string, err error) string {
	return fmt.Sprintf("❌ <b>%s</b> wallpaper update failed\n<code>%s</code>",
		html.EscapeString(label), html.EscapeString(err.Error()))
}

func FormatRecovery(label string) string {
	return fmt.Sprintf("✅ <b>%s</b> wallpaper updates recovered", html.EscapeString(label))
}
