package challenge

// Outcome is the evaluator's verdict for a single evaluation pass.
type Outcome struct {
	Status     Status
	Reason     string
	Deactivate bool // trading account must reject further opens
}

// Evaluate applies the challenge rules to the enrollment's current balance
// and the realized PnL of today's closed trades. It is invoked after every
// trade close.
//
// Rule order is a policy decision: the total-loss check runs first and
// short-circuits, so a close that simultaneously breaches max total loss and
// reaches the profit target fails. Ties count: thresholds compare with >= and
// <=, never strictly.
func Evaluate(ch Challenge, balance, dailyPnL float64) Outcome {
	totalDrawdown := ch.AccountSize - balance
	if totalDrawdown >= ch.MaxTotalLoss {
		return Outcome{Status: StatusFailed, Reason: "max total loss breached", Deactivate: true}
	}

	if balance-ch.AccountSize >= ch.ProfitTarget {
		return Outcome{Status: StatusPassed, Reason: "profit target reached"}
	}

	if dailyPnL <= -ch.MaxDailyLoss {
		return Outcome{Status: StatusFailed, Reason: "max daily loss breached", Deactivate: true}
	}

	return Outcome{Status: StatusActive}
}
