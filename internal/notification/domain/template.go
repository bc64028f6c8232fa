package domain

import "strings"

// Template is the closed catalog of customer-facing messages. Adding a value
// here requires filling in both the message body and the email subject below.
type Template string

const (
	TemplateCashbackEarned   Template = "CASHBACK_EARNED"
	TemplateCashbackRedeemed Template = "CASHBACK_REDEEMED"
	TemplateTierUpgraded     Template = "TIER_UPGRADED"
	TemplateWelcome          Template = "WELCOME"
	TemplateTrialExpiring    Template = "TRIAL_EXPIRING"
	TemplateTrialExpired     Template = "TRIAL_EXPIRED"
	TemplateFundsAdded       Template = "FUNDS_ADDED"
	TemplateBalanceUpdate    Template = "BALANCE_UPDATE"
)

func (t Template) Valid() bool {
	_, ok := templateBodies[t]
	return ok
}

var templateBodies = map[Template]string{
	TemplateCashbackEarned:   "Hi {customerName}, you earned {amount} cashback at {storeName}. New balance: {balance}.",
	TemplateCashbackRedeemed: "Hi {customerName}, you redeemed {amount} at {storeName}. New balance: {balance}.",
	TemplateTierUpgraded:     "Congratulations {customerName}! You reached the {tier} tier.",
	TemplateWelcome:          "Welcome {customerName}! Your card at {storeName} is active. Balance: {balance}.",
	TemplateTrialExpiring:    "Heads up: only {remaining} free card activations left on your trial.",
	TemplateTrialExpired:     "Your free trial allowance has been used up. Upgrade to keep activating cards.",
	TemplateFundsAdded:       "Hi {customerName}, {amount} was added to your card. New balance: {balance}.",
	TemplateBalanceUpdate:    "Hi {customerName}, your balance was adjusted. New balance: {balance}.",
}

var templateSubjects = map[Template]string{
	TemplateCashbackEarned:   "You earned cashback",
	TemplateCashbackRedeemed: "Redemption confirmed",
	TemplateTierUpgraded:     "Tier upgrade",
	TemplateWelcome:          "Welcome aboard",
	TemplateTrialExpiring:    "Trial activations running low",
	TemplateTrialExpired:     "Trial allowance used up",
	TemplateFundsAdded:       "Funds added to your card",
	TemplateBalanceUpdate:    "Balance update",
}

// Render substitutes {name} placeholders with values. Unknown placeholders
// are left as-is so a missing variable is visible in the stored body.
func (t Template) Render(vars map[string]string) string {
	body, ok := templateBodies[t]
	if !ok {
		return ""
	}
	if len(vars) == 0 {
		return body
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

func (t Template) Subject() string {
	return templateSubjects[t]
}
