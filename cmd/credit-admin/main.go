// credit-admin is an operator CLI for the credit ledger: grant credits to a
// user by email, check a balance, or run the expiry sweep by hand.
//
// Usage:
//
//	credit-admin -grant -email user@example.com -credits 100 -valid-days 365 -desc "compensation"
//	credit-admin -check -email user@example.com
//	credit-admin -sweep
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/memegrid/memegrid-api/internal/config"
	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/domain/user"
	"github.com/memegrid/memegrid-api/internal/pkg/database"
)

func main() {
	var (
		doGrant   = flag.Bool("grant", false, "grant credits to a user")
		doCheck   = flag.Bool("check", false, "print a user's balance and recent transactions")
		doSweep   = flag.Bool("sweep", false, "expire all due grants now")
		email     = flag.String("email", "", "user email")
		credits   = flag.Int64("credits", 0, "credits to grant")
		validDays = flag.Int("valid-days", 365, "grant validity in days, 0 for no expiry")
		desc      = flag.String("desc", "Manual grant", "grant description")
	)
	flag.Parse()

	if !*doGrant && !*doCheck && !*doSweep {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		fatalf("connect to postgres: %v", err)
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := user.NewRepository(db)
	ledger := credit.NewService(db)

	switch {
	case *doSweep:
		swept, err := ledger.SweepExpired(ctx)
		if err != nil {
			fatalf("sweep: %v", err)
		}
		fmt.Printf("expired %d grants\n", swept)

	case *doGrant:
		if *email == "" || *credits <= 0 {
			fatalf("-grant requires -email and a positive -credits")
		}
		u, err := users.GetByEmail(ctx, *email)
		if err != nil {
			fatalf("find user: %v", err)
		}
		opts := credit.GrantOptions{
			Scene:       credit.SceneAdminGrant,
			Description: *desc,
		}
		if *validDays > 0 {
			opts.ExpiresInDays = credit.Days(*validDays)
		}
		tx, err := ledger.Grant(ctx, u.ID, *credits, opts)
		if err != nil {
			fatalf("grant: %v", err)
		}
		fmt.Printf("granted %d credits to %s (transaction %s)\n", *credits, u.Email, tx.ID)
		if tx.ExpiresAt != nil {
			fmt.Printf("expires at %s\n", tx.ExpiresAt.Format(time.RFC3339))
		}

	case *doCheck:
		if *email == "" {
			fatalf("-check requires -email")
		}
		u, err := users.GetByEmail(ctx, *email)
		if err != nil {
			fatalf("find user: %v", err)
		}
		balance, err := ledger.GetBalance(ctx, u.ID)
		if err != nil {
			fatalf("balance: %v", err)
		}
		fmt.Printf("user:    %s (%s)\n", u.Email, u.ID)
		fmt.Printf("credits: %d across %d active grants\n", balance.Credits, balance.ActiveGrants)
		if balance.NearestExpiresAt != nil {
			fmt.Printf("nearest expiry: %s\n", balance.NearestExpiresAt.Format(time.RFC3339))
		}

		txs, _, err := ledger.ListTransactions(ctx, u.ID, 10, 0)
		if err != nil {
			fatalf("transactions: %v", err)
		}
		fmt.Println("recent transactions:")
		for _, tx := range txs {
			fmt.Printf("  %s  %-8s %-16s %6d (remaining %d) %s\n",
				tx.CreatedAt.Format("2006-01-02 15:04"),
				tx.TransactionType, tx.TransactionScene,
				tx.Credits, tx.RemainingCredits, tx.Status)
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
