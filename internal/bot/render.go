package bot

import (
	"fmt"
	"strings"

	"referral-bot/internal/models"
	"referral-bot/internal/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const (
	cbCheckBalance = "check_balance"
	cbReferralLink = "referral_link"
	cbDailyBonus   = "daily_bonus"
	cbWithdraw     = "withdraw"
	cbHowToEarn    = "how_to_earn"
	cbBackToMenu   = "back_to_menu"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Check Balance", cbCheckBalance),
			tgbotapi.NewInlineKeyboardButtonData("🔗 My Referral Link", cbReferralLink),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎁 Daily Bonus", cbDailyBonus),
			tgbotapi.NewInlineKeyboardButtonData("💸 Withdraw", cbWithdraw),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ How to Earn", cbHowToEarn),
		),
	)
}

func backMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Menu", cbBackToMenu),
		),
	)
}

func welcomeText(firstName string, rules services.Rules, returning bool) string {
	greeting := "👋 Welcome"
	if returning {
		greeting = "👋 Welcome back"
	}
	if firstName == "" {
		firstName = "friend"
	}
	return fmt.Sprintf("%s, %s!\n\n"+
		"This bot offers a referral-based earning system:\n\n"+
		"• Earn %s for each successful referral\n"+
		"• Claim a daily bonus once per day\n"+
		"• Withdraw your earnings once your balance reaches %s\n\n"+
		"Use the buttons below to navigate:",
		greeting, firstName, rules.ReferralReward, rules.MinimumWithdrawal)
}

func helpText() string {
	return strings.Join([]string{
		"🤖 Bot Commands:",
		"",
		"/start - Start the bot and get the main menu",
		"/help - Show this help message",
		"/balance - Check your current balance",
		"/referral - Get your referral link",
		"/bonus - Claim your daily bonus",
		"/withdraw - Withdraw your earnings",
		"/cancel - Cancel a pending withdrawal",
		"",
		"You can also use the inline buttons.",
	}, "\n")
}

func balanceText(info models.BalanceInfo, rules services.Rules) string {
	return fmt.Sprintf("💰 Your current balance: %s\n👥 Total referrals: %d\n\nYou need at least %s to withdraw.",
		info.Balance, info.ReferralCount, rules.MinimumWithdrawal)
}

func referralText(link string, rules services.Rules) string {
	return fmt.Sprintf("🔗 Share this link with your friends:\n\n%s\n\nYou'll earn %s for each person who joins using your link!",
		link, rules.ReferralReward)
}

func howToEarnText(rules services.Rules) string {
	return fmt.Sprintf("💡 How to earn:\n\n"+
		"1️⃣ Refer friends - %s per referral\n"+
		"2️⃣ Claim daily bonus - random amount between %d and %d\n\n"+
		"You can withdraw once your balance reaches %s.",
		rules.ReferralReward, rules.BonusMin, rules.BonusMax, rules.MinimumWithdrawal)
}

func bonusText(res models.BonusResult) string {
	if res.Status == models.BonusAlreadyClaimed {
		return "⚠️ You've already claimed your daily bonus today. Come back tomorrow!"
	}
	return fmt.Sprintf("🎁 Congratulations! You received a daily bonus of %s!", res.Amount)
}

func withdrawStartText(res models.WithdrawStartResult, rules services.Rules) string {
	if res.Status == models.WithdrawBelowMinimum {
		return fmt.Sprintf("⚠️ Your current balance (%s) is below the minimum withdrawal amount.\nYou need at least %s to withdraw.",
			res.Balance, rules.MinimumWithdrawal)
	}
	return fmt.Sprintf("💸 You can withdraw up to %s.\nPlease enter the amount you want to withdraw, or /cancel:", res.Balance)
}

func withdrawResultText(res models.WithdrawResult) string {
	switch res.Status {
	case models.WithdrawSuccess:
		return fmt.Sprintf("✅ Withdrawal processed successfully!\nYour new balance is %s.", res.Balance)
	case models.WithdrawInvalidNumber:
		return "⚠️ Please enter a valid number."
	case models.WithdrawMustBePositive:
		return "⚠️ Please enter a positive amount."
	case models.WithdrawExceedsBalance:
		return fmt.Sprintf("⚠️ You cannot withdraw more than your balance (%s).", res.Balance)
	case models.WithdrawBelowMinimum:
		minimum := decimal.Zero
		if res.Minimum != nil {
			minimum = *res.Minimum
		}
		return fmt.Sprintf("⚠️ The minimum withdrawal amount is %s.", minimum)
	case models.WithdrawCancelled:
		return "Operation cancelled."
	default:
		return "There is no withdrawal in progress. Use /withdraw to start one."
	}
}

func referralNotice(reward decimal.Decimal) string {
	return fmt.Sprintf("🎉 Congratulations! You earned %s from a new referral!", reward)
}
