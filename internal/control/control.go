// Package control maps operator-channel commands onto session
// transitions, restricted to the authorized-operator set.
package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/pasiyamd/forexbot/internal/notify"
	"github.com/pasiyamd/forexbot/internal/observ"
	"github.com/pasiyamd/forexbot/internal/session"
)

// Controller is the slice of the session the control surface drives.
type Controller interface {
	Start(ctx context.Context, mode session.Mode) error
	Stop() session.Mode
	Status(ctx context.Context) session.Status
}

// Surface validates issuers and routes commands. Unauthorized callers
// get no response at all, so probers cannot confirm the bot exists.
type Surface struct {
	admins  map[int64]struct{}
	session Controller
}

func NewSurface(adminIDs []int64, s Controller) *Surface {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Surface{admins: admins, session: s}
}

// Authorized reports whether issuer may drive the bot.
func (s *Surface) Authorized(issuer int64) bool {
	_, ok := s.admins[issuer]
	return ok
}

// Handle executes command for issuer and returns the reply text. The
// second return is false when the command must be silently dropped.
func (s *Surface) Handle(ctx context.Context, issuer int64, command, args string) (string, bool) {
	if !s.Authorized(issuer) {
		observ.IncCounter("control_unauthorized_total", nil)
		observ.Warn("control_unauthorized", map[string]any{"issuer": issuer, "command": command})
		return "", false
	}

	observ.Log("control_command", map[string]any{"issuer": issuer, "command": command})

	switch command {
	case "start":
		if mode, err := session.ParseMode(strings.TrimSpace(args)); err == nil {
			return s.startMode(ctx, mode), true
		}
		return "👋 Bot alive. Use /safe or /unlimited to start.", true
	case "safe":
		return s.startMode(ctx, session.ModeSafe), true
	case "unlimited":
		return s.startMode(ctx, session.ModeUnlimited), true
	case "stop":
		s.session.Stop()
		return "Bot stopped.", true
	case "status":
		return s.statusText(ctx), true
	case "alive":
		return notify.Tagline + " ALIVE", true
	case "menu":
		return menuText, true
	default:
		return "Unknown command. Use /menu for the command list.", true
	}
}

func (s *Surface) startMode(ctx context.Context, mode session.Mode) string {
	switch err := s.session.Start(ctx, mode); {
	case err == nil:
		return fmt.Sprintf("%s mode started.", title(mode.String()))
	case err == session.ErrAlreadyRunning:
		return "⚠️ Bot already running."
	case err == session.ErrStartAborted:
		return "Start canceled."
	default:
		return fmt.Sprintf("Venue connect failed: %v", err)
	}
}

func (s *Surface) statusText(ctx context.Context) string {
	st := s.session.Status(ctx)
	return fmt.Sprintf("Mode: %s\nRunning: %t\nStartBalance: $%s\nCurrentProfit: $%s",
		st.Mode, st.Running, st.StartBalance.StringFixed(2), st.TodayProfit.StringFixed(2))
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const menuText = notify.Tagline + " MENU\n\n" +
	"Commands:\n" +
	"/menu - Show this menu\n" +
	"/alive - Check bot alive\n" +
	"/safe - Start trading in safe mode\n" +
	"/unlimited - Start trading in unlimited mode\n" +
	"/stop - Stop trading\n" +
	"/status - Wallet & daily profit"
