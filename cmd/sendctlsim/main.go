// Command sendctlsim drives an internal/quic.Controller against a scripted
// send/ack/loss trace and prints a summary of what happened, the way a
// developer exercising the real controller by hand would: no network stack,
// no encryption, just the bookkeeping.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quicctl/sendctl/internal/quic"
	"github.com/quicctl/sendctl/internal/simnet"
)

var (
	verbose    bool
	ietf       bool
	pacing     bool
	ecn        bool
	clientSide bool
	traceFile  string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sendctlsim",
		Short: "sendctlsim drives a QUIC send controller against a scripted trace",
		Long:  "sendctlsim drives a QUIC send controller against a scripted trace",
		RunE:  runSim,
	}
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().BoolVar(&ietf, "ietf", true, "use IETF packet-number semantics")
	root.Flags().BoolVar(&pacing, "pacing", true, "enable pacing")
	root.Flags().BoolVar(&ecn, "ecn", true, "enable ECN accounting")
	root.Flags().BoolVar(&clientSide, "client", true, "run as the client side")
	root.Flags().StringVarP(&traceFile, "trace", "t", "", "path to a trace file (- for built-in demo trace)")
	return root
}

func runSim(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	side := quic.ClientSide
	if !clientSide {
		side = quic.ServerSide
	}

	net := simnet.New()
	cfg := quic.Config{
		Side:          side,
		IETF:          ietf,
		PacingEnabled: pacing,
		ECNEnabled:    ecn,
		Alarms:        net.Alarms,
		RTT:           net.RTT,
		CC:            net.CC,
		Pacer:         net.Pacer,
		History:       net.History,
		Conn:          net.Conn,
		Streams:       net.Streams,
		ATTQ:          net.ATTQ,
		Logger:        entry,
	}
	ctl := quic.NewController(cfg)
	defer ctl.Cleanup()

	script := simnet.DemoTrace
	if traceFile != "" && traceFile != "-" {
		s, err := simnet.LoadTrace(traceFile)
		if err != nil {
			return fmt.Errorf("loading trace: %w", err)
		}
		script = s
	}

	result := net.Run(ctl, script, time.Now())

	fmt.Printf("sent=%d acked=%d lost=%d final_in_flight=%d final_bytes_scheduled=%d\n",
		result.Sent, result.Acked, result.Lost, ctl.PacketsInFlight(), ctl.BytesScheduled())
	return nil
}
