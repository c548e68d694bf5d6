package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xraph/tally/numbering"
)

func newSequenceCmd(c *cli) *cobra.Command {
	var (
		addr string
		name string
	)

	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect or move the Redis invoice counter",
	}
	cmd.PersistentFlags().StringVar(&addr, "redis-addr", "", "Redis address (default from redis.addr)")
	cmd.PersistentFlags().StringVar(&name, "name", numbering.DefaultSequence, "counter name")

	// open returns the sequence, a formatter for its values and a closer.
	open := func() (*numbering.RedisSequence, *numbering.Authority, func() error, error) {
		cfg := c.cfg
		if addr != "" {
			cfg.Redis.Addr = addr
		}
		rdb := cfg.RedisClient()
		if rdb == nil {
			return nil, nil, nil, fmt.Errorf("no Redis address: set --redis-addr or redis.addr")
		}
		seq := numbering.NewRedisSequence(rdb, cfg.Redis.KeyPrefix)
		auth := numbering.New(seq,
			numbering.WithName(name),
			numbering.WithPrefix(cfg.InvoicePrefix),
			numbering.WithWidth(cfg.InvoiceWidth),
		)
		return seq, auth, rdb.Close, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "next",
			Short: "Issue the next invoice number",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, auth, closeFn, err := open()
				if err != nil {
					return err
				}
				defer closeFn() //nolint:errcheck // best-effort close

				num, err := auth.Next(cmd.Context())
				if err != nil {
					return err
				}
				log := c.component("sequence")
				log.Info().Str("name", name).Int64("value", num.Value).Msg("issued")
				_, err = fmt.Fprintln(cmd.OutOrStdout(), num.Text)
				return err
			},
		},
		&cobra.Command{
			Use:   "peek",
			Short: "Show the last issued invoice number without issuing one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				seq, auth, closeFn, err := open()
				if err != nil {
					return err
				}
				defer closeFn() //nolint:errcheck // best-effort close

				n, err := seq.Peek(cmd.Context(), name)
				if err != nil {
					return err
				}
				if n == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "no numbers issued")
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), auth.Format(n))
				return err
			},
		},
		&cobra.Command{
			Use:   "seed <value>",
			Short: "Raise the counter to at least value when moving a sequence into Redis",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || n < 0 {
					return fmt.Errorf("value must be a non-negative integer: %q", args[0])
				}

				seq, auth, closeFn, err := open()
				if err != nil {
					return err
				}
				defer closeFn() //nolint:errcheck // best-effort close

				if err := seq.Seed(cmd.Context(), name, n); err != nil {
					return err
				}
				cur, err := seq.Peek(cmd.Context(), name)
				if err != nil {
					return err
				}
				log := c.component("sequence")
				log.Info().Str("name", name).Str("last", auth.Format(cur)).Msg("seeded")
				return nil
			},
		},
	)
	return cmd
}
