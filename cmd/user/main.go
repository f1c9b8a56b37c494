package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/congo-pay/payword/internal/client"
	"github.com/congo-pay/payword/internal/config"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/logging"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/wallet"
)

// options holds the flags shared by every subcommand.
type options struct {
	BrokerURL string
	Keystore  string
	Identity  string
	Timeout   time.Duration
	LogLevel  string
}

// session is a wallet opened against a broker.
type session struct {
	broker   *client.Broker
	info     client.BrokerInfo
	wallet   *wallet.Service
	keystore *keys.Keystore
	logger   *slog.Logger
}

func (s *session) Close() error {
	return s.keystore.Close()
}

func openSession(ctx context.Context, o options, chainLength int) (*session, error) {
	if o.Identity == "" {
		return nil, errors.New("an identity is required (--identity or PAYWORD_IDENTITY)")
	}
	logger := logging.With(logging.NewWithFormat(o.LogLevel, "text"), "user")
	broker := client.NewBroker(o.BrokerURL, o.Timeout)
	info, err := broker.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch broker identity: %w", err)
	}
	id, err := protocol.NewIdentity(o.Identity, len(info.Identity))
	if err != nil {
		return nil, err
	}
	scheme, err := keys.Scheme(info.Scheme)
	if err != nil {
		return nil, err
	}
	hasher, err := hashchain.NewHasher(info.Hash)
	if err != nil {
		return nil, err
	}
	ks, err := keys.OpenKeystore(o.Keystore)
	if err != nil {
		return nil, err
	}
	kp, _, err := ks.LoadOrGenerate(scheme, o.Identity)
	if err != nil {
		ks.Close()
		return nil, err
	}
	return &session{
		broker:   broker,
		info:     info,
		wallet:   wallet.NewService(id, kp, hasher, chainLength, ks),
		keystore: ks,
		logger:   logger,
	}, nil
}

func newRootCommand() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	o := options{
		BrokerURL: cfg.Payword.BrokerURL,
		Keystore:  cfg.Payword.Keystore,
		Identity:  cfg.Payword.Identity,
		Timeout:   cfg.Payword.ClientTimeout,
		LogLevel:  cfg.LogLevel,
	}

	cmd := &cobra.Command{
		Use:          "payword-user",
		Short:        "PayWord user wallet",
		SilenceUsage: true,
		Example: `  # Register with the broker and store the certificate
  payword-user register --identity alice --keystore ./alice --account 1 --credit 50

  # Pay a vendor ten links of denomination 1
  payword-user pay --identity alice --keystore ./alice --vendor http://localhost:8081 --count 10`,
	}
	cmd.PersistentFlags().StringVar(&o.BrokerURL, "broker", o.BrokerURL, "broker base URL")
	cmd.PersistentFlags().StringVar(&o.Keystore, "keystore", o.Keystore, "keystore directory (empty keeps keys in memory)")
	cmd.PersistentFlags().StringVar(&o.Identity, "identity", o.Identity, "user identity")
	cmd.PersistentFlags().DurationVar(&o.Timeout, "timeout", o.Timeout, "per-request timeout")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", o.LogLevel, "logging level")

	cmd.AddCommand(
		newRegisterCommand(&o, cfg),
		newPayCommand(&o, cfg),
		newBalanceCommand(&o),
	)
	return cmd
}

func newRegisterCommand(o *options, cfg config.Config) *cobra.Command {
	account := cfg.Payword.AccountNumber
	credit := cfg.Payword.CreditLimit
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register with the broker and store the issued certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), *o, cfg.Payword.ChainLength)
			if err != nil {
				return err
			}
			defer s.Close()

			cert, err := s.broker.RegisterUser(cmd.Context(), s.wallet.Registration(account, credit))
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := s.wallet.SetCertificate(cert); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s: account %d, credit limit %d, certificate expires %s\n",
				cert.UserIdentity, cert.AccountNumber, cert.CreditLimit, cert.Expiry.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Int64Var(&account, "account", account, "broker account number")
	cmd.Flags().Int64Var(&credit, "credit", credit, "requested credit limit")
	return cmd
}

func newPayCommand(o *options, cfg config.Config) *cobra.Command {
	var (
		vendorURL    string
		count        int
		denomination int
		chainLength  = cfg.Payword.ChainLength
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Commit to a vendor and pay a number of links",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := protocol.ParseDenomination(int32(denomination))
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), *o, chainLength)
			if err != nil {
				return err
			}
			defer s.Close()

			paid, err := pay(cmd.Context(), s, client.NewVendor(vendorURL, o.Timeout), d, count)
			fmt.Fprintf(cmd.OutOrStdout(), "paid %d units in %d links\n", paid*int64(d), paid)
			return err
		},
	}
	cmd.Flags().StringVar(&vendorURL, "vendor", "http://localhost:8081", "vendor base URL")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of links to pay")
	cmd.Flags().IntVarP(&denomination, "denomination", "d", 1, "link denomination (1, 5 or 10)")
	cmd.Flags().IntVar(&chainLength, "chain-length", chainLength, "paywords per committed chain")
	return cmd
}

// pay commits to the vendor and sends count links of d, committing again
// whenever a chain runs out. It stops at the first refused link and always
// ends the session so the vendor redeems what was accepted.
func pay(ctx context.Context, s *session, v *client.Vendor, d protocol.Denomination, count int) (int64, error) {
	vendorID, err := v.Identity(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch vendor identity: %w", err)
	}
	var session string
	commit := func() error {
		c, err := s.wallet.Commit(vendorID)
		if err != nil {
			return err
		}
		session, err = v.Commit(ctx, c)
		return err
	}
	if err := commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	defer func() {
		if _, err := v.End(ctx, s.wallet.Identity(), session); err != nil {
			s.logger.Warn("end session", "error", err)
		}
		s.wallet.End(vendorID)
	}()

	var paid int64
	for paid < int64(count) {
		link, err := s.wallet.Pay(vendorID, d)
		if errors.Is(err, protocol.ErrChainExhausted) {
			if _, err := v.End(ctx, s.wallet.Identity(), session); err != nil {
				return paid, fmt.Errorf("end exhausted episode: %w", err)
			}
			if err := commit(); err != nil {
				return paid, fmt.Errorf("recommit: %w", err)
			}
			continue
		}
		if err != nil {
			return paid, err
		}
		receipt, err := v.Pay(ctx, s.wallet.Identity(), session, link)
		if err != nil {
			if protocol.IsFraud(err) {
				return paid, fmt.Errorf("vendor reported fraud at link %d: %w", link.Index, err)
			}
			return paid, fmt.Errorf("link %d rejected: %w", link.Index, err)
		}
		paid++
		s.logger.Debug("link accepted", "index", receipt.Index, "value", receipt.Value)
	}
	return paid, nil
}

func newBalanceCommand(o *options) *cobra.Command {
	var account int64
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a broker account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker := client.NewBroker(o.BrokerURL, o.Timeout)
			balance, err := broker.Balance(cmd.Context(), account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d: %d\n", account, balance)
			return nil
		},
	}
	cmd.Flags().Int64Var(&account, "account", 0, "broker account number")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
