// Package models defines the ZenMoney synchronization entities and their
// wire format.
//
// Field names on the wire are camelCase aliases that must round-trip
// exactly (shortTitle, syncID, enableSMS, ...). None of the json tags use
// omitempty: the diff endpoint expects a full snapshot of the object shape,
// with explicit nulls for absent optional fields.
//
// System entities (Instrument, Company, User) are server-owned and carry
// integer ids; non-system entities are user-owned and carry string UUIDs.
// Cross-entity references are plain foreign keys; the client never resolves
// or validates them.
package models

// Instrument is a currency. Rate is relative to the ruble.
type Instrument struct {
	ID         int     `json:"id"`
	Changed    int64   `json:"changed"`
	Title      string  `json:"title"`
	ShortTitle string  `json:"shortTitle"`
	Symbol     string  `json:"symbol"`
	Rate       float64 `json:"rate"`
}

// Company is a bank or financial service known to ZenMoney.
type Company struct {
	ID        int    `json:"id"`
	Changed   int64  `json:"changed"`
	Title     string `json:"title"`
	FullTitle string `json:"fullTitle"`
	WWW       string `json:"www"`
	Country   string `json:"country"`
}

// User is an account owner. Currency references an Instrument; Parent
// references another User for shared family accounts.
type User struct {
	ID       int     `json:"id"`
	Changed  int64   `json:"changed"`
	Login    *string `json:"login"`
	Currency int     `json:"currency"`
	Parent   *int    `json:"parent"`
}

// Account is a user-owned money account (cash, card, deposit, loan).
type Account struct {
	ID               string   `json:"id"`
	Changed          int64    `json:"changed"`
	User             int      `json:"user"`
	Title            string   `json:"title"`
	Type             string   `json:"type"`
	Instrument       int      `json:"instrument"`
	Company          int      `json:"company"`
	SyncID           []string `json:"syncID"`
	Balance          float64  `json:"balance"`
	StartBalance     float64  `json:"startBalance"`
	InBalance        bool     `json:"inBalance"`
	EnableCorrection bool     `json:"enableCorrection"`
	EnableSMS        bool     `json:"enableSMS"`
	Archive          bool     `json:"archive"`
	Private          bool     `json:"private"`
	Capitalization   bool     `json:"capitalization"`
	Percent          float64  `json:"percent"`
	StartDate        string   `json:"startDate"`
	EndDateOffset    int      `json:"endDateOffset"`
	PayoffStep       int      `json:"payoffStep"`
	PayoffInterval   int      `json:"payoffInterval"`
	Color            int      `json:"color"`
	Icon             string   `json:"icon"`
	Savings          bool     `json:"savings"`
}

// Tag is a transaction category. Parent references another Tag.
type Tag struct {
	ID             string  `json:"id"`
	Changed        int64   `json:"changed"`
	User           int     `json:"user"`
	Title          string  `json:"title"`
	Parent         *string `json:"parent"`
	Icon           string  `json:"icon"`
	Picture        string  `json:"picture"`
	Color          int     `json:"color"`
	ShowIncome     bool    `json:"showIncome"`
	ShowOutcome    bool    `json:"showOutcome"`
	BudgetIncome   bool    `json:"budgetIncome"`
	BudgetOutcome  bool    `json:"budgetOutcome"`
	Required       bool    `json:"required"`
	Capitalization bool    `json:"capitalization"`
	Percent        float64 `json:"percent"`
	StartDate      string  `json:"startDate"`
	EndDateOffset  int     `json:"endDateOffset"`
	PayoffStep     int     `json:"payoffStep"`
	PayoffInterval int     `json:"payoffInterval"`
}

// Merchant is a named payee attached to transactions.
type Merchant struct {
	ID      string `json:"id"`
	Changed int64  `json:"changed"`
	User    int    `json:"user"`
	Title   string `json:"title"`
}

// Reminder is a planned recurring operation.
type Reminder struct {
	ID                string   `json:"id"`
	Changed           int64    `json:"changed"`
	User              int      `json:"user"`
	IncomeInstrument  int      `json:"incomeInstrument"`
	IncomeAccount     string   `json:"incomeAccount"`
	Income            float64  `json:"income"`
	OutcomeInstrument int      `json:"outcomeInstrument"`
	OutcomeAccount    string   `json:"outcomeAccount"`
	Outcome           float64  `json:"outcome"`
	Tag               []string `json:"tag"`
	Merchant          *string  `json:"merchant"`
	Payee             *string  `json:"payee"`
	Comment           *string  `json:"comment"`
	Interval          *int     `json:"interval"`
	Step              *int     `json:"step"`
	Points            []int    `json:"points"`
	StartDate         string   `json:"startDate"`
	EndDate           *string  `json:"endDate"`
	Notify            bool     `json:"notify"`
}

// ReminderMarker is a single planned occurrence of a Reminder.
type ReminderMarker struct {
	ID                string   `json:"id"`
	Changed           int64    `json:"changed"`
	User              int      `json:"user"`
	IncomeInstrument  int      `json:"incomeInstrument"`
	IncomeAccount     string   `json:"incomeAccount"`
	Income            float64  `json:"income"`
	OutcomeInstrument int      `json:"outcomeInstrument"`
	OutcomeAccount    string   `json:"outcomeAccount"`
	Outcome           float64  `json:"outcome"`
	Tag               []string `json:"tag"`
	Merchant          *string  `json:"merchant"`
	Payee             *string  `json:"payee"`
	Comment           *string  `json:"comment"`
	Date              string   `json:"date"`
	Reminder          string   `json:"reminder"`
	State             string   `json:"state"`
	Notify            bool     `json:"notify"`
}

// Transaction is a single money operation. Income and outcome sides are
// independent so a transfer carries both.
type Transaction struct {
	ID                  string   `json:"id"`
	Changed             int64    `json:"changed"`
	Created             int64    `json:"created"`
	User                int      `json:"user"`
	Deleted             bool     `json:"deleted"`
	IncomeInstrument    int      `json:"incomeInstrument"`
	IncomeAccount       string   `json:"incomeAccount"`
	Income              float64  `json:"income"`
	OutcomeInstrument   int      `json:"outcomeInstrument"`
	OutcomeAccount      string   `json:"outcomeAccount"`
	Outcome             float64  `json:"outcome"`
	Tag                 []string `json:"tag"`
	Merchant            *string  `json:"merchant"`
	Payee               *string  `json:"payee"`
	OriginalPayee       *string  `json:"originalPayee"`
	Comment             *string  `json:"comment"`
	Date                string   `json:"date"`
	MCC                 *int     `json:"mcc"`
	ReminderMarker      *string  `json:"reminderMarker"`
	OpIncome            *float64 `json:"opIncome"`
	OpIncomeInstrument  *int     `json:"opIncomeInstrument"`
	OpOutcome           *float64 `json:"opOutcome"`
	OpOutcomeInstrument *int     `json:"opOutcomeInstrument"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
}

// Budget is a per-tag monthly limit.
type Budget struct {
	ID          string   `json:"id"`
	Changed     int64    `json:"changed"`
	User        int      `json:"user"`
	Tag         []string `json:"tag"`
	Date        string   `json:"date"`
	Income      float64  `json:"income"`
	IncomeLock  bool     `json:"incomeLock"`
	Outcome     float64  `json:"outcome"`
	OutcomeLock bool     `json:"outcomeLock"`
}

// Deletion records an entity removed on the server side.
type Deletion struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	User   int    `json:"user"`
	Stamp  int64  `json:"stamp"`
}

// DiffObject is the synchronization payload. ServerTimestamp zero requests
// a full sync; nil entity slices serialize as null.
type DiffObject struct {
	ServerTimestamp        int64            `json:"serverTimestamp"`
	CurrentClientTimestamp int64            `json:"currentClientTimestamp"`
	Instrument             []Instrument     `json:"instrument"`
	Company                []Company        `json:"company"`
	User                   []User           `json:"user"`
	Account                []Account        `json:"account"`
	Tag                    []Tag            `json:"tag"`
	Merchant               []Merchant       `json:"merchant"`
	Reminder               []Reminder       `json:"reminder"`
	ReminderMarker         []ReminderMarker `json:"reminderMarker"`
	Transaction            []Transaction    `json:"transaction"`
	Budget                 []Budget         `json:"budget"`
	Deletion               []Deletion       `json:"deletion"`
}
