package domain

const (
	incomeFreeTickets      = 7
	incomePerTicket        = 3
	incomeFirstBonusAt     = 15
	incomeFirstBonus       = 15
	incomeSecondBonusAt    = 25
	incomeSecondBonus      = 20
	incomeRecurringFrom    = 35
	incomeRecurringBlock   = 10
	incomeRecurringPerStep = 20
)

// CalculateAmbassadorIncome returns the tiered commission for a cumulative ticket count.
// The first seven tickets are unpaid; negative counts are treated as zero.
func CalculateAmbassadorIncome(ticketsSold int) int {
	if ticketsSold <= incomeFreeTickets {
		return 0
	}
	income := (ticketsSold - incomeFreeTickets) * incomePerTicket
	if ticketsSold >= incomeFirstBonusAt {
		income += incomeFirstBonus
	}
	if ticketsSold >= incomeSecondBonusAt {
		income += incomeSecondBonus
	}
	if ticketsSold >= incomeRecurringFrom {
		income += (ticketsSold - incomeRecurringFrom) / incomeRecurringBlock * incomeRecurringPerStep
	}
	return income
}
