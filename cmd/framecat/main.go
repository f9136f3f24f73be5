// Command framecat is the framelib utility: it hex-dumps binary files and
// runs a small echo server speaking the Point/Vector demo protocol over
// TCP and UDP.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvellum/framelib"
	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/config"
	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/network/dispatcher"
	"github.com/dvellum/framelib/network/handler"
	"github.com/dvellum/framelib/network/message"
	"github.com/dvellum/framelib/network/transport"
	"github.com/dvellum/framelib/network/transport/tcp"
	"github.com/dvellum/framelib/network/transport/udp"
	"github.com/dvellum/framelib/utils/hexdump"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "framecat",
		Short:         "framelib wire utility",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDumpCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "framecat:", err)
		os.Exit(1)
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [file]",
		Short: "Print an octet table of a binary file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), hexdump.Dump(data))
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Point/Vector echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "app.yaml", "configuration file")
	return cmd
}

// demoRegistry registers the Point and Vector schemas with echo handlers
// plus a raw fallback that echoes unknown frames untouched.
func demoRegistry() (*message.Registry, error) {
	point := codec.NewSchema("Point").
		Field("code", codec.I16(codec.Always(1))).
		Field("x", codec.I32()).
		Field("y", codec.I32()).
		MustBuild()
	vector := codec.NewSchema("Vector").
		Field("code", codec.I16(codec.Always(2))).
		Field("x", codec.F32()).
		Field("y", codec.F32()).
		MustBuild()

	echo := func(d handler.Delivery) (any, error) { return d.Record(), nil }

	reg := message.NewRegistry()
	if err := reg.Register(point, echo); err != nil {
		return nil, err
	}
	if err := reg.Register(vector, echo); err != nil {
		return nil, err
	}
	reg.RegisterRaw(func(d handler.Delivery) (any, error) { return d.Raw(), nil })
	return reg, nil
}

func serve(cfg *config.Config) error {
	if cfg.TCP == nil && cfg.UDP == nil {
		return errors.New("no transport configured: add a tcp or udp section")
	}

	app, err := framelib.New(cfg)
	if err != nil {
		return err
	}
	defer app.Stop()

	reg, err := demoRegistry()
	if err != nil {
		return err
	}
	parser, err := reg.Parser()
	if err != nil {
		return err
	}
	disp, err := dispatcher.NewDispatcher(cfg.Dispatcher, reg)
	if err != nil {
		return err
	}
	wire, err := log.NewWireLogger(cfg.Wire)
	if err != nil {
		return err
	}
	defer wire.Close()

	opt := transport.TransportOption{Receiver: disp, Parser: parser, Wire: wire}
	var transports []transport.Transport

	if cfg.TCP != nil {
		tr, err := tcp.NewTCPTransport(cfg.TCP)
		if err != nil {
			return err
		}
		if err := tr.Start(opt); err != nil {
			return err
		}
		transports = append(transports, tr)
	}
	if cfg.UDP != nil {
		tr, err := udp.NewUDPTransport(cfg.UDP)
		if err != nil {
			return err
		}
		if err := tr.Start(opt); err != nil {
			return err
		}
		transports = append(transports, tr)
	}

	defer func() {
		for _, tr := range transports {
			_ = tr.Stop()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")
	return nil
}
