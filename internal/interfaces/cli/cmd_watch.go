package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/query"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

func init() {
	register(
		&command{path: "watch transactions", args: "[key=value...]", summary: "Live journal, filters edited on stdin", setup: watchCommand(watchTransactions)},
		&command{path: "watch well-closures", args: "[key=value...]", summary: "Live well closure list, filters edited on stdin", setup: watchCommand(watchClosures)},
	)
}

// fetchFunc loads and prints one page for the given filters
type fetchFunc func(ctx context.Context, a *App, f query.Filters) error

func watchTransactions(ctx context.Context, a *App, f query.Filters) error {
	txs, err := apiclient.GetList[inventory.Transaction](ctx, a.client, "/transactions/", f.Values())
	if err != nil {
		return err
	}
	return a.out.Print(txs, transactionTable(a.out, txs))
}

func watchClosures(ctx context.Context, a *App, f query.Filters) error {
	list, err := apiclient.GetList[project.WellClosure](ctx, a.client, "/well-closures/", f.Values())
	if err != nil {
		return err
	}
	return a.out.Print(list, closureTable(list...))
}

// watchCommand prints the list once, then again after every burst of filter
// edits read from stdin has settled. Edits are key=value, key= or reset.
func watchCommand(fetch fetchFunc) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, a *App, args []string) error {
			current := query.Filters{}
			for _, arg := range args {
				next, err := current.Apply(arg)
				if err != nil {
					return err
				}
				current = next
			}

			show := func(f query.Filters) error {
				fmt.Fprintf(a.stderr, "-- filters: %s\n", orDash(f.String()))
				err := fetch(ctx, a, f)
				if err == nil || errors.Is(err, apiclient.ErrSessionExpired) {
					return err
				}
				logger.L(ctx).Debug("watch fetch failed", zap.Error(err))
				fmt.Fprintf(a.stderr, "Error: %s\n", apiclient.Message(err))
				return nil
			}
			if err := show(current); err != nil {
				return err
			}

			edits := make(chan query.Filters)
			go func() {
				defer close(edits)
				scanner := bufio.NewScanner(a.in)
				for scanner.Scan() {
					next, err := current.Apply(scanner.Text())
					if err != nil {
						fmt.Fprintf(a.stderr, "Error: %v\n", err)
						continue
					}
					current = next
					select {
					case edits <- current:
					case <-ctx.Done():
						return
					}
				}
			}()

			for f := range query.Debounce(ctx, edits, a.cfg.UI.Debounce) {
				if err := show(f); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
