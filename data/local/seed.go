package local

import (
	"fmt"

	"github.com/finsight-ai/finsight/core"
)

// The dataset is derived purely from row indices so that every process
// sees the same snapshot. Values are plausible rather than realistic.

var (
	segments     = []string{"retail", "premium", "business", "student"}
	loanTypes    = []string{"mortgage", "personal", "auto", "business"}
	loanStatuses = []string{"active", "active", "active", "paid", "default"}
	accountTypes = []string{"checking", "savings", "cd", "money_market"}
	categories   = []string{"grocery", "travel", "utilities", "dining", "transfer"}
	channels     = []string{"online", "branch", "atm", "mobile"}
	months       = []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}
)

func (p *Provider) seed(opts Options) {
	customers := make([]core.Record, 0, opts.Customers)
	for i := 0; i < opts.Customers; i++ {
		customers = append(customers, core.Record{
			"customer_id":    fmt.Sprintf("C%04d", i+1),
			"segment":        segments[i%len(segments)],
			"credit_score":   550 + (i*7)%300,
			"products":       1 + i%5,
			"lifetime_value": 1500.0 + float64((i*137)%20000),
			"churn_risk":     float64(i%100) / 100,
			"join_date":      dateFor(2018+i%6, i),
		})
	}
	p.views[ViewCustomers] = customers

	loans := make([]core.Record, 0, opts.Loans)
	for i := 0; i < opts.Loans; i++ {
		loans = append(loans, core.Record{
			"loan_id":          fmt.Sprintf("L%04d", i+1),
			"customer_id":      fmt.Sprintf("C%04d", i%opts.Customers+1),
			"loan_type":        loanTypes[i%len(loanTypes)],
			"amount":           10000.0 + float64((i*613)%490000),
			"interest_rate":    3.0 + float64(i%60)/10,
			"status":           loanStatuses[i%len(loanStatuses)],
			"origination_date": dateFor(2019+i%5, i),
		})
	}
	p.views[ViewLoans] = loans

	deposits := make([]core.Record, 0, opts.Deposits)
	for i := 0; i < opts.Deposits; i++ {
		deposits = append(deposits, core.Record{
			"account_id":   fmt.Sprintf("D%04d", i+1),
			"customer_id":  fmt.Sprintf("C%04d", i%opts.Customers+1),
			"account_type": accountTypes[i%len(accountTypes)],
			"balance":      250.0 + float64((i*389)%120000),
			"opened_date":  dateFor(2019+i%5, i),
		})
	}
	p.views[ViewDeposits] = deposits

	transactions := make([]core.Record, 0, opts.Transactions)
	for i := 0; i < opts.Transactions; i++ {
		transactions = append(transactions, core.Record{
			"transaction_id": fmt.Sprintf("T%05d", i+1),
			"customer_id":    fmt.Sprintf("C%04d", i%opts.Customers+1),
			"category":       categories[i%len(categories)],
			"channel":        channels[i%len(channels)],
			"amount":         5.0 + float64((i*53)%2500),
			"date":           dateFor(2023+i%2, i),
		})
	}
	p.views[ViewTransactions] = transactions
}

func dateFor(year, i int) string {
	return fmt.Sprintf("%d-%s-%02d", year, months[i%12], i%28+1)
}
