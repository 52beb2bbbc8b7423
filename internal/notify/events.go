package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pasiyamd/forexbot/internal/venue"
)

// Tagline prefixes the lifecycle messages, matching the bot's
// long-standing operator-channel branding.
const Tagline = "POWERED_BUY PASIYA-MD FOREX AUTO TRADING BOT"

// WalletSnapshot renders an account snapshot as operator text.
func WalletSnapshot(snap venue.AccountSnapshot) string {
	var b strings.Builder
	b.WriteString("Wallet Snapshot:\n")
	fmt.Fprintf(&b, "Balance: $%s\n", snap.Balance.StringFixed(2))
	fmt.Fprintf(&b, "Equity: $%s\n", snap.Equity.StringFixed(2))
	fmt.Fprintf(&b, "Margin: $%s\n", snap.Margin.StringFixed(2))
	fmt.Fprintf(&b, "Free Margin: $%s\n", snap.FreeMargin.StringFixed(2))
	fmt.Fprintf(&b, "Leverage: %d", snap.Leverage)
	return b.String()
}

func SessionStarted(mode string, snap venue.AccountSnapshot) string {
	return fmt.Sprintf("%s ON\nMode: %s\n%s", Tagline, strings.ToUpper(mode), WalletSnapshot(snap))
}

func SessionStopped(priorMode string, snap venue.AccountSnapshot) string {
	return fmt.Sprintf("%s STOPPED\n%s\nMode was: %s", Tagline, WalletSnapshot(snap), priorMode)
}

func PreTrade(symbol string, snap venue.AccountSnapshot, riskPercent decimal.Decimal) string {
	return fmt.Sprintf("Pre-Trade Snapshot for %s:\n%s\nSymbol: %s\nRisk%%: %s%%",
		symbol, WalletSnapshot(snap), symbol, riskPercent)
}

func NoSignal(symbol string) string {
	return fmt.Sprintf("%s: No trade signal at this time.", symbol)
}

func PlacingOrder(side, symbol string, lot decimal.Decimal, slPips, tpPips int) string {
	return fmt.Sprintf("Placing %s %s | Lot: %s | SL:%d pips | TP:%d pips",
		strings.ToUpper(side), symbol, lot, slPips, tpPips)
}

func OrderFailed(symbol string, reason string) string {
	return fmt.Sprintf("Order failed: %s %s", symbol, reason)
}

func ProfitUpdate(profit decimal.Decimal) string {
	return fmt.Sprintf("📊 Current Profit: $%s", profit.StringFixed(2))
}

func TargetReached(profit decimal.Decimal) string {
	return fmt.Sprintf("💰 DAILY TARGET REACHED: $%s\nDAILY TARGET COMPLETE\n%s",
		profit.StringFixed(2), Tagline)
}

func SymbolError(symbol string, err error) string {
	return fmt.Sprintf("⚠️ Error in worker for %s: %v", symbol, err)
}
