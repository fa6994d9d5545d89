package cli

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Config    string `help:"YAML file overriding the settings found in the ledger." type:"existingfile" env:"BEANLEDGER_CONFIG"`
}

type Commands struct {
	Globals

	Check    CheckCmd    `cmd:"" help:"Load ledgers and report their errors."`
	Query    QueryCmd    `cmd:"" help:"Run a query or query shell command against a ledger."`
	Balances BalancesCmd `cmd:"" help:"Show the account tree with balances."`
	Journal  JournalCmd  `cmd:"" help:"Show the journal of an account."`
	Prices   PricesCmd   `cmd:"" help:"List the prices of each commodity pair."`
	Budget   BudgetCmd   `cmd:"" help:"Compare budgets with the actual balances per interval."`
	Insert   InsertCmd   `cmd:"" help:"Insert a transaction into a ledger."`
	Doctor   DoctorCmd   `cmd:"" help:"Doctor utilities for debugging ledger files."`
}
