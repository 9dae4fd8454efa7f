// Command hubone-exporter collects connection statistics from a Plusnet
// Hub One router and writes them to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hubone-exporter/pkg/collect"
	"hubone-exporter/pkg/hubone"
	"hubone-exporter/pkg/influx"
)

type options struct {
	routerIP       string
	routerPassword string
	influxURL      string
	influxDatabase string
	interval       int
	verbose        bool
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "hubone-exporter",
		Short:        "collect stats from a Plusnet Hub One router, and send them to InfluxDB",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.routerIP, "router-ip", "192.168.1.254", "router IP address")
	flags.StringVar(&opts.routerPassword, "router-password", "", "router admin password")
	flags.StringVar(&opts.influxURL, "influxdb-url", "", "influxdb URL")
	flags.StringVar(&opts.influxDatabase, "influxdb-database", "plusnet_router", "influxdb database to write to")
	flags.IntVar(&opts.interval, "interval", 15, "stats collection interval in seconds")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "be verbose")
	cobra.CheckErr(cmd.MarkFlagRequired("router-password"))
	cobra.CheckErr(cmd.MarkFlagRequired("influxdb-url"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	level := logrus.WarnLevel
	if opts.verbose {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	router, err := hubone.New(opts.routerIP, opts.routerPassword)
	if err != nil {
		return err
	}

	// Log in up front so a session-limit refusal stops the process
	// before the loop starts rather than surfacing on the first tick.
	if err := router.Login(ctx); err != nil {
		// An interrupt mid-login is a user-requested exit, not a failure.
		if ctx.Err() != nil {
			fmt.Println("\nexiting!")
			return nil
		}
		logrus.WithError(err).Error("unable to log in to router")
		return err
	}
	fmt.Printf("authorized for router at %s, with password %s\n",
		opts.routerIP, strings.Repeat("*", len(opts.routerPassword)))

	sink, err := influx.New(opts.influxURL, opts.influxDatabase)
	if err != nil {
		return err
	}
	defer sink.Close()
	fmt.Printf("connected to influxdb at %s\n", opts.influxURL)

	collector := collect.New(router, sink, time.Duration(opts.interval)*time.Second)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return collector.Run(groupCtx)
	})

	err = group.Wait()
	if ctx.Err() != nil {
		fmt.Println("\nexiting!")
		return nil
	}
	return err
}
