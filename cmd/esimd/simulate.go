package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"esim-payments/internal/config"
	"esim-payments/internal/database"
	"esim-payments/internal/domain"
	"esim-payments/internal/signature"
)

// simulateCmd drives orders through the real services against the configured
// database: create, settle via a signed webhook, provision via the worker.
func simulateCmd() *cobra.Command {
	var orders int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Create orders, settle them with signed webhooks and provision them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runSimulate(ctx, cmd, orders)
		},
	}
	cmd.Flags().IntVarP(&orders, "orders", "n", 5, "number of orders to simulate")
	return cmd
}

func runSimulate(ctx context.Context, cmd *cobra.Command, n int) error {
	out := cmd.OutOrStdout()

	cfg := config.Load()
	log := newLogger("warn")

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer a.Close()

	gw, err := a.configs.Current(ctx)
	if err != nil {
		return err
	}
	signer := signature.New(gw.SecretKey)

	methods := []domain.PaymentMethod{
		domain.MethodMPU, domain.MethodVisaMastercard, domain.MethodUPI, domain.MethodUABPay, domain.MethodMMQR,
	}
	outcomes := []domain.PaymentStatus{
		domain.StatusCompleted, domain.StatusCompleted, domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled,
	}
	plans := domain.DefaultPlans()

	fmt.Fprintf(out, "--- SIMULATING %d ORDERS (%s) ---\n", n, gw.Environment)
	var ids []string
	for i := 0; i < n; i++ {
		plan := plans[rand.IntN(len(plans))]
		res, err := a.orders.CreateOrder(ctx, &domain.CreateOrderRequest{
			PaymentMethod: methods[rand.IntN(len(methods))],
			Amount:        decimal.NewFromFloat(plan.Price),
			EsimPlanID:    plan.ID,
			CustomerEmail: fmt.Sprintf("customer%d@example.com", i+1),
		})
		if err != nil {
			fmt.Fprintf(out, "[%d] create failed: %v\n", i+1, err)
			continue
		}

		outcome := outcomes[rand.IntN(len(outcomes))]
		payload := map[string]any{"transaction_id": res.TransactionID, "status": string(outcome)}
		sig, err := signer.Sign(payload)
		if err != nil {
			return err
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "[%d] %s -> %s ... ", i+1, res.TransactionID, outcome)
		if _, err := a.webhooks.Handle(ctx, body, sig); err != nil {
			fmt.Fprintf(out, "REJECTED: %v\n", err)
			continue
		}
		fmt.Fprintln(out, "OK")
		ids = append(ids, res.TransactionID)
	}

	// jobs either finish or fail after max attempts, so this terminates
	processed := 0
	for {
		k, err := a.worker.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		if k == 0 {
			break
		}
		processed += k
	}
	fmt.Fprintf(out, "--- WORKER PROCESSED %d PROVISIONING JOBS ---\n", processed)

	for _, id := range ids {
		txn, err := a.transactions.FindByID(ctx, id)
		if err != nil || txn == nil {
			fmt.Fprintf(out, "%s: lookup failed: %v\n", id, err)
			continue
		}
		p, err := a.provisionsDB.FindByTransactionID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintf(out, "%s: %s, no eSIM\n", id, txn.Status)
			continue
		}
		fmt.Fprintf(out, "%s: %s, ICCID %s\n", id, txn.Status, p.ICCID)
	}
	return nil
}
